package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxDatagramSize is the largest payload sent over UDP. Anything bigger
// goes over HTTP.
const MaxDatagramSize = 60000

// ShipperConfig configures where log records are shipped
type ShipperConfig struct {
	Host        string
	UDPPort     int
	HTTPPort    int
	Environment string
	Service     string
	Timeout     time.Duration
}

// shippedRecord is the element format understood by the log collector
type shippedRecord struct {
	ID               string            `json:"Id"`
	Status           string            `json:"Status"`
	Level            string            `json:"Level"`
	Time             string            `json:"Time"`
	Message          string            `json:"Message"`
	ErrorDescription string            `json:"ErrorDescription"`
	Path             string            `json:"Path,omitempty"`
	Host             string            `json:"Host,omitempty"`
	DatabaseTarget   string            `json:"DatabaseConnection,omitempty"`
	ElapsedMs        int64             `json:"LoadBalancingExecution,omitempty"`
	AdditionalData   map[string]string `json:"AdditionalData"`
	Environment      string            `json:"Environment"`
	ServiceName      string            `json:"ServiceName"`
}

type shippedEnvelope struct {
	Message []string `json:"message"`
}

// ShipperHook is a logrus hook that forwards every entry to a remote
// collector over UDP, falling back to HTTP POST for large payloads.
// Send failures go to stderr and never propagate to the caller.
type ShipperHook struct {
	config  ShipperConfig
	mu      sync.Mutex
	conn    net.Conn
	client  *http.Client
	httpURL string
	errOut  io.Writer
}

// NewShipperHook dials the UDP collector and prepares the HTTP fallback
func NewShipperHook(config ShipperConfig) (*ShipperHook, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("shipper host cannot be empty")
	}
	if config.UDPPort <= 0 || config.UDPPort > 65535 {
		return nil, fmt.Errorf("invalid shipper udp port: %d", config.UDPPort)
	}
	if config.HTTPPort <= 0 || config.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid shipper http port: %d", config.HTTPPort)
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Environment == "" {
		config.Environment = "Unset"
	}

	conn, err := net.Dial("udp", net.JoinHostPort(config.Host, strconv.Itoa(config.UDPPort)))
	if err != nil {
		return nil, fmt.Errorf("failed to dial log collector: %w", err)
	}

	return &ShipperHook{
		config:  config,
		conn:    conn,
		client:  &http.Client{Timeout: config.Timeout},
		httpURL: "http://" + net.JoinHostPort(config.Host, strconv.Itoa(config.HTTPPort)),
		errOut:  os.Stderr,
	}, nil
}

// Levels implements logrus.Hook
func (h *ShipperHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook
func (h *ShipperHook) Fire(entry *logrus.Entry) error {
	payload, err := h.encode(entry)
	if err != nil {
		fmt.Fprintf(h.errOut, "log shipper: encode: %v\n", err)
		return nil
	}
	if err := h.send(payload); err != nil {
		fmt.Fprintf(h.errOut, "log shipper: %v\n", err)
	}
	return nil
}

// Close releases the UDP socket
func (h *ShipperHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn.Close()
}

func (h *ShipperHook) encode(entry *logrus.Entry) ([]byte, error) {
	record := shippedRecord{
		ID:             uuid.NewString(),
		Status:         statusFor(entry),
		Level:          entry.Level.String(),
		Time:           entry.Time.Format(timestampFormat),
		Message:        entry.Message,
		AdditionalData: make(map[string]string, len(entry.Data)),
		Environment:    h.config.Environment,
		ServiceName:    h.config.Service,
	}

	for key, value := range entry.Data {
		switch key {
		case "error":
			record.ErrorDescription = fmt.Sprint(value)
		case "path":
			record.Path = fmt.Sprint(value)
		case "host":
			record.Host = fmt.Sprint(value)
		case "target":
			record.DatabaseTarget = fmt.Sprint(value)
		case "elapsed_ms":
			if ms, ok := value.(int64); ok {
				record.ElapsedMs = ms
			}
		case "environment", "service":
		default:
			record.AdditionalData[key] = fmt.Sprint(value)
		}
	}

	element, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return json.Marshal(shippedEnvelope{Message: []string{string(element)}})
}

func (h *ShipperHook) send(payload []byte) error {
	if len(payload) > MaxDatagramSize {
		resp, err := h.client.Post(h.httpURL, "application/json", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("http send: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("http send: collector returned %d", resp.StatusCode)
		}
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.conn.Write(payload); err != nil {
		return fmt.Errorf("udp send: %w", err)
	}
	return nil
}

func statusFor(entry *logrus.Entry) string {
	if entry.Level <= logrus.ErrorLevel {
		return "Error"
	}
	if status, ok := entry.Data["status"].(string); ok {
		switch status {
		case "ok", "Ok":
			return "Ok"
		case "error", "Error":
			return "Error"
		}
	}
	return "Info"
}
