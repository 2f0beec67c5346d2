package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
)

const (
	// DefaultKafkaImage is used when no Kafka image is given.
	DefaultKafkaImage = "apache/kafka:3.9.1"

	// KafkaBrokerPort is the internal BROKER listener registries connect to.
	KafkaBrokerPort = 9093

	// ExternalPort is the Kafka API port mapped to the host, for both kinds.
	ExternalPort = "9092/tcp"

	kafkaControllerPort  = 9094
	kafkaClusterID       = "4L6g3nShT-eMCtK--X86sw"
	kafkaStarterScript   = "/tmp/testcontainers_start.sh"
	kafkaReadyPattern    = `.*Kafka Server started.*`
	brokerStartupTimeout = 2 * time.Minute
)

// The advertised listeners depend on the mapped host port, which is only
// known once the container runs; the entrypoint waits for this script.
const kafkaStarterTemplate = `#!/bin/bash
export KAFKA_ADVERTISED_LISTENERS=PLAINTEXT://%s:%d,BROKER://%s:%d
exec /etc/kafka/docker/run
`

// DefaultKafka returns a single-node KRaft broker on its own bridge network,
// reachable as kafka:9093 from containers on that network. Stopping the
// handle also removes the network.
func DefaultKafka(image string) *container.Docker {
	if image == "" {
		image = DefaultKafkaImage
	}
	nw := container.NewNetwork("bridge")

	return container.NewDocker(image, nw, true, func(ctx context.Context, networkName string) (testcontainers.Container, error) {
		req := testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{ExternalPort},
			Env:          kafkaEnv(),
			Labels:       map[string]string{container.LabelTopology: nw.ID()},
			Entrypoint:   []string{"sh"},
			Cmd: []string{"-c", fmt.Sprintf("while [ ! -f %[1]s ]; do sleep 0.1; done; %[1]s",
				kafkaStarterScript)},
			Networks:       []string{networkName},
			NetworkAliases: map[string][]string{networkName: {Alias}},
			LifecycleHooks: []testcontainers.ContainerLifecycleHooks{
				{
					PostStarts: []testcontainers.ContainerHook{
						copyKafkaStarter,
						func(ctx context.Context, c testcontainers.Container) error {
							return wait.ForLog(kafkaReadyPattern).
								AsRegexp().
								WithStartupTimeout(brokerStartupTimeout).
								WaitUntilReady(ctx, c)
						},
					},
				},
			},
		}

		return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
			Logger:           container.Logger,
		})
	})
}

func kafkaEnv() map[string]string {
	return map[string]string{
		"CLUSTER_ID":          kafkaClusterID,
		"KAFKA_NODE_ID":       "1",
		"KAFKA_PROCESS_ROLES": "broker,controller",
		"KAFKA_LISTENERS": fmt.Sprintf("PLAINTEXT://0.0.0.0:9092,BROKER://0.0.0.0:%d,CONTROLLER://0.0.0.0:%d",
			KafkaBrokerPort, kafkaControllerPort),
		"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP":           "BROKER:PLAINTEXT,PLAINTEXT:PLAINTEXT,CONTROLLER:PLAINTEXT",
		"KAFKA_INTER_BROKER_LISTENER_NAME":               "BROKER",
		"KAFKA_CONTROLLER_LISTENER_NAMES":                "CONTROLLER",
		"KAFKA_CONTROLLER_QUORUM_VOTERS":                 "1@localhost:" + strconv.Itoa(kafkaControllerPort),
		"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR":         "1",
		"KAFKA_OFFSETS_TOPIC_NUM_PARTITIONS":             "1",
		"KAFKA_TRANSACTION_STATE_LOG_REPLICATION_FACTOR": "1",
		"KAFKA_TRANSACTION_STATE_LOG_MIN_ISR":            "1",
		"KAFKA_GROUP_INITIAL_REBALANCE_DELAY_MS":         "0",
		"KAFKA_LOG_FLUSH_INTERVAL_MESSAGES":              "9223372036854775807",
	}
}

func copyKafkaStarter(ctx context.Context, c testcontainers.Container) error {
	host, err := c.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to get kafka host: %w", err)
	}
	port, err := c.MappedPort(ctx, ExternalPort)
	if err != nil {
		return fmt.Errorf("failed to get kafka mapped port: %w", err)
	}

	script := fmt.Sprintf(kafkaStarterTemplate, host, port.Int(), Alias, KafkaBrokerPort)
	if err := c.CopyToContainer(ctx, []byte(script), kafkaStarterScript, 0o755); err != nil {
		return fmt.Errorf("failed to copy kafka starter script: %w", err)
	}
	return nil
}
