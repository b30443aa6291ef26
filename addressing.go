package messenger

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/deviceiot-go/amqpmessenger/internal/idgen"
)

const linkBaseAddressFormat = "amqps://%s/%s"

// devicesPath builds the logical device identity "<host>/devices/<device_id>"
// using the caller-supplied format string, which must carry exactly two
// substitutions (host then device id), mirroring create_devices_path.
func devicesPath(devicesPathFormat, iothubHostFQDN, deviceID string) (string, error) {
	path := fmt.Sprintf(devicesPathFormat, iothubHostFQDN, deviceID)
	if path == "" {
		return "", errors.New("devices path format produced an empty path")
	}
	return path, nil
}

// linkAddress builds "amqps://<devices_path>/<suffix>". A leading "/" on
// suffix is dropped so the address never carries a doubled separator.
func linkAddress(devicesPath, suffix string) string {
	return fmt.Sprintf(linkBaseAddressFormat, devicesPath, strings.TrimPrefix(suffix, "/"))
}

// uniqueLinkName builds "<prefix>-<infix>-<uuid>" where uuid is a fresh
// 36-character textual identifier, mirroring create_link_name.
func uniqueLinkName(prefix, infix string) (string, error) {
	id, err := idgen.New()
	if err != nil {
		return "", errors.Wrap(err, "failed creating a unique link name")
	}
	return fmt.Sprintf("%s-%s-%s", prefix, infix, id), nil
}

// linkSourceName builds "<link_name>-source".
func linkSourceName(linkName string) string {
	return linkName + "-source"
}

// linkTargetName builds "<link_name>-target".
func linkTargetName(linkName string) string {
	return linkName + "-target"
}

const (
	senderLinkNamePrefix   = "link-snd"
	receiverLinkNamePrefix = "link-rcv"
)

// senderAddressing computes every name needed to attach the outbound
// (device-to-cloud) link: the link name, its AMQP source name, and the
// target address the link attaches to.
func senderAddressing(m *Messenger) (linkName, sourceName, targetAddress string, err error) {
	path, err := devicesPath(m.devicesPathFormat, m.iothubHostFQDN, m.deviceID)
	if err != nil {
		return "", "", "", errors.Wrap(err, "failed creating the message sender (devices path)")
	}
	targetAddress = linkAddress(path, m.sendLinkTargetSuffix)

	linkName, err = uniqueLinkName(senderLinkNamePrefix, m.deviceID)
	if err != nil {
		return "", "", "", errors.Wrap(err, "failed creating the message sender (link name)")
	}
	sourceName = linkSourceName(linkName)
	return linkName, sourceName, targetAddress, nil
}

// receiverAddressing computes every name needed to attach the inbound
// (cloud-to-device) link: the link name, its AMQP source address, and
// the target name.
func receiverAddressing(m *Messenger) (linkName, sourceAddress, targetName string, err error) {
	path, err := devicesPath(m.devicesPathFormat, m.iothubHostFQDN, m.deviceID)
	if err != nil {
		return "", "", "", errors.Wrap(err, "failed creating the message receiver (devices path)")
	}
	sourceAddress = linkAddress(path, m.receiveLinkSourceSuffix)

	linkName, err = uniqueLinkName(receiverLinkNamePrefix, m.deviceID)
	if err != nil {
		return "", "", "", errors.Wrap(err, "failed creating the message receiver (link name)")
	}
	targetName = linkTargetName(linkName)
	return linkName, sourceAddress, targetName, nil
}
