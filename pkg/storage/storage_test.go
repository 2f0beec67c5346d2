package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
)

type fakeHandle struct {
	host    string
	port    int
	running bool
	err     error
}

func (f *fakeHandle) Name() string                         { return "fake" }
func (f *fakeHandle) IsRunning() bool                      { return f.running }
func (f *fakeHandle) Host(context.Context) (string, error) { return f.host, f.err }
func (f *fakeHandle) Logs(context.Context) (string, error) { return "", nil }
func (f *fakeHandle) Network() container.Network           { return nil }

func (f *fakeHandle) Start(context.Context) error {
	f.running = true
	return nil
}

func (f *fakeHandle) Stop(context.Context) error {
	f.running = false
	return nil
}

func (f *fakeHandle) MappedPort(_ context.Context, port string) (int, error) {
	if port != ExternalPort {
		return 0, errors.New("unexpected port " + port)
	}
	return f.port, f.err
}

func TestKindProfile(t *testing.T) {
	tests := []struct {
		name          string
		backend       *Backend
		wantKind      Kind
		wantImage     string
		wantBootstrap string
		wantPre       time.Duration
		wantPost      time.Duration
	}{
		{"kafka default image", KafkaImage(""), Kafka, DefaultKafkaImage, "kafka:9093", time.Second, 0},
		{"kafka custom image", KafkaImage("apache/kafka:4.1.1"), Kafka, "apache/kafka:4.1.1", "kafka:9093", time.Second, 0},
		{"redpanda default image", RedpandaImage(""), Redpanda, DefaultRedpandaImage, "kafka:39093", 0, 5 * time.Second},
		{"kafka container", KafkaContainer(&fakeHandle{}), Kafka, "", "kafka:9093", time.Second, 0},
		{"redpanda container", RedpandaContainer(&fakeHandle{}), Redpanda, "", "kafka:39093", 0, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.backend
			if b.Kind() != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", b.Kind(), tt.wantKind)
			}
			if b.Image() != tt.wantImage {
				t.Errorf("Image() = %q, want %q", b.Image(), tt.wantImage)
			}
			if b.BootstrapURI() != tt.wantBootstrap {
				t.Errorf("BootstrapURI() = %q, want %q", b.BootstrapURI(), tt.wantBootstrap)
			}
			if b.PreStartDelay() != tt.wantPre {
				t.Errorf("PreStartDelay() = %v, want %v", b.PreStartDelay(), tt.wantPre)
			}
			if b.PostStartDelay() != tt.wantPost {
				t.Errorf("PostStartDelay() = %v, want %v", b.PostStartDelay(), tt.wantPost)
			}
		})
	}
}

func TestDelaysAreExclusive(t *testing.T) {
	for _, k := range []Kind{Kafka, Redpanda} {
		p := profileOf(k)
		if (p.preStart > 0) == (p.postStart > 0) {
			t.Errorf("%s: exactly one of preStart (%v) and postStart (%v) must be set", k, p.preStart, p.postStart)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"kafka", Kafka, false},
		{"Kafka", Kafka, false},
		{"redpanda", Redpanda, false},
		{"REDPANDA", Redpanda, false},
		{"pulsar", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if Kafka.String() != "kafka" {
		t.Errorf("Kafka.String() = %q, want %q", Kafka.String(), "kafka")
	}
	if Redpanda.String() != "redpanda" {
		t.Errorf("Redpanda.String() = %q, want %q", Redpanda.String(), "redpanda")
	}
	if Kind(0).String() != "unknown" {
		t.Errorf("Kind(0).String() = %q, want %q", Kind(0).String(), "unknown")
	}
}

func TestProfileOfUnknownKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("profileOf(0) did not panic")
		}
	}()
	profileOf(Kind(0))
}

func TestExternalHandleNeverOwned(t *testing.T) {
	h := &fakeHandle{}
	b := KafkaContainer(h)

	if b.OwnsLifecycle() {
		t.Error("OwnsLifecycle() = true for a caller-supplied broker")
	}
	for i := 0; i < 2; i++ {
		got, owns := b.Acquire()
		if got != h {
			t.Errorf("Acquire() #%d returned a different handle", i+1)
		}
		if owns {
			t.Errorf("Acquire() #%d owns = true, want false", i+1)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		backend *Backend
		wantErr bool
	}{
		{"kafka image", KafkaImage(""), false},
		{"redpanda image", RedpandaImage("redpandadata/redpanda:v24.2.4"), false},
		{"kafka container", KafkaContainer(&fakeHandle{}), false},
		{"nil kafka container", KafkaContainer(nil), true},
		{"nil redpanda container", RedpandaContainer(nil), true},
		{"zero backend", &Backend{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.backend.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidBackend) {
					t.Errorf("Validate() error = %v, want ErrInvalidBackend", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestNilContainerNeverOwned(t *testing.T) {
	b := KafkaContainer(nil)
	if b.OwnsLifecycle() {
		t.Error("OwnsLifecycle() = true for a backend without image")
	}
	if b.Image() != "" {
		t.Errorf("Image() = %q, want empty", b.Image())
	}
}

func TestBackendString(t *testing.T) {
	tests := []struct {
		backend *Backend
		want    string
	}{
		{KafkaImage(""), "kafka image " + DefaultKafkaImage},
		{RedpandaContainer(&fakeHandle{}), "redpanda container fake"},
		{KafkaContainer(nil), "kafka without broker"},
	}
	for _, tt := range tests {
		if got := tt.backend.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestWithMaterializer(t *testing.T) {
	h := &fakeHandle{}
	var calls int
	var gotImage string
	b := RedpandaImage("").WithMaterializer(func(image string) container.Handle {
		calls++
		gotImage = image
		return h
	})

	got, owns := b.Acquire()
	if got != h {
		t.Error("Acquire() did not return the materialized handle")
	}
	if !owns {
		t.Error("Acquire() owns = false for an image backend")
	}
	b.Resolve()
	if calls != 1 {
		t.Errorf("materializer called %d times, want 1", calls)
	}
	if gotImage != DefaultRedpandaImage {
		t.Errorf("materializer image = %q, want %q", gotImage, DefaultRedpandaImage)
	}
}

func TestImageBackendFirstAcquirerOwns(t *testing.T) {
	b := RedpandaImage("")
	if !b.OwnsLifecycle() {
		t.Fatal("OwnsLifecycle() = false for an image backend")
	}

	first, owns := b.Acquire()
	if !owns {
		t.Error("first Acquire() owns = false, want true")
	}
	second, owns := b.Acquire()
	if owns {
		t.Error("second Acquire() owns = true, want false")
	}
	if first != second {
		t.Error("Acquire() materialized the broker twice")
	}
}

func TestResolveMemoizes(t *testing.T) {
	b := KafkaImage("")
	h1 := b.Resolve()
	h2 := b.Resolve()
	if h1 != h2 {
		t.Fatal("Resolve() returned different handles")
	}
	if h1.IsRunning() {
		t.Error("Resolve() started the broker")
	}
	if h1.Name() != DefaultKafkaImage {
		t.Errorf("Name() = %q, want %q", h1.Name(), DefaultKafkaImage)
	}
	if h1.Network() == nil {
		t.Error("default Kafka topology has no network")
	}
}

func TestBrokers(t *testing.T) {
	b := KafkaContainer(&fakeHandle{host: "localhost", port: 55001, running: true})
	got, err := b.Brokers(context.Background())
	if err != nil {
		t.Fatalf("Brokers() error = %v", err)
	}
	if got != "localhost:55001" {
		t.Errorf("Brokers() = %q, want %q", got, "localhost:55001")
	}

	b = KafkaContainer(&fakeHandle{err: container.ErrNotStarted})
	if _, err := b.Brokers(context.Background()); !errors.Is(err, container.ErrNotStarted) {
		t.Errorf("Brokers() error = %v, want ErrNotStarted", err)
	}
}

func TestBrokersBeforeStart(t *testing.T) {
	b := KafkaImage("")
	if _, err := b.Brokers(context.Background()); !errors.Is(err, container.ErrNotStarted) {
		t.Errorf("Brokers() error = %v, want ErrNotStarted", err)
	}
}

func TestKafkaEnv(t *testing.T) {
	env := kafkaEnv()
	want := map[string]string{
		"KAFKA_PROCESS_ROLES":              "broker,controller",
		"KAFKA_INTER_BROKER_LISTENER_NAME": "BROKER",
		"KAFKA_CONTROLLER_QUORUM_VOTERS":   "1@localhost:9094",
		"KAFKA_LISTENERS":                  "PLAINTEXT://0.0.0.0:9092,BROKER://0.0.0.0:9093,CONTROLLER://0.0.0.0:9094",
	}
	for k, v := range want {
		if env[k] != v {
			t.Errorf("kafkaEnv()[%q] = %q, want %q", k, env[k], v)
		}
	}
}
