package storage

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/testcontainers/testcontainers-go/network"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
)

const (
	// DefaultRedpandaImage is used when no Redpanda image is given.
	DefaultRedpandaImage = "redpandadata/redpanda:v25.3.1"

	// RedpandaListenerPort is the extra Kafka API listener registries connect
	// to. It differs from Kafka's so the two never collide on one network.
	RedpandaListenerPort = 39093
)

// DefaultRedpanda returns a Redpanda broker on its own bridge network with an
// additional listener advertised as kafka:39093. Stopping the handle also
// removes the network.
func DefaultRedpanda(image string) *container.Docker {
	if image == "" {
		image = DefaultRedpandaImage
	}
	nw := container.NewNetwork("bridge")

	return container.NewDocker(image, nw, true, func(ctx context.Context, networkName string) (testcontainers.Container, error) {
		ctr, err := redpanda.Run(ctx, image,
			network.WithNetworkName([]string{Alias}, networkName),
			redpanda.WithListener(fmt.Sprintf("%s:%d", Alias, RedpandaListenerPort)),
			testcontainers.WithLabels(map[string]string{container.LabelTopology: nw.ID()}),
			testcontainers.WithLogger(container.Logger),
		)
		if ctr == nil {
			return nil, err
		}
		return ctr, err
	})
}
