// Package eventstreamutils builds an exchange event publisher from
// configuration.
package eventstreamutils

import (
	"fmt"

	"github.com/papercomputeco/banter/pkg/eventstream"
	"github.com/papercomputeco/banter/pkg/eventstream/kafka"
	"github.com/papercomputeco/banter/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	// ProviderType is one of "nop" or "kafka". Empty means "nop".
	ProviderType string
	Brokers      []string
	Topic        string
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
		})
	default:
		return nil, fmt.Errorf("unsupported event provider: %s", o.ProviderType)
	}
}
