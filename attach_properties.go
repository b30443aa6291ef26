package messenger

import "github.com/pkg/errors"

// attachPropertiesToAMQP translates a caller-supplied string->string
// property map into the symbol-keyed map go-amqp attaches at link open
// time (SenderOptions.Properties / ReceiverOptions.Properties take
// map[string]any, keyed by what go-amqp encodes as an AMQP symbol).
// A nil or empty input yields a nil map, matching a link created with no
// attach properties at all.
//
// On any per-entry failure the whole property set fails, mirroring
// add_link_attach_properties: a partially-built property map is never
// handed to link creation.
func attachPropertiesToAMQP(props map[string]string) (map[string]any, error) {
	if len(props) == 0 {
		return nil, nil
	}

	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == "" {
			return nil, errors.New("link attach property key must not be empty")
		}
		out[k] = v
	}
	return out, nil
}
