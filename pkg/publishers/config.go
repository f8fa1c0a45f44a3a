package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	TypeQueue = "queue"
	TypeHTTP  = "http"

	QueueProviderAWSSQS = "aws-sqs"
	QueueProviderAWSSNS = "aws-sns"
	QueueProviderGCP    = "gcp"

	defaultHTTPMethod  = http.MethodPost
	defaultHTTPTimeout = 5 * time.Second
)

var knownKinds = []string{KindNews, KindQuotes, KindWeather}

type fileLayout struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig is one sink declared in the publishers file.
// Kinds limits delivery to those event kinds; empty means every kind.
type PublisherConfig struct {
	ID      string               `json:"id" yaml:"id"`
	Type    string               `json:"type" yaml:"type"`
	Enabled *bool                `json:"enabled" yaml:"enabled"`
	Kinds   []string             `json:"kinds" yaml:"kinds"`
	Queue   *QueueConfig         `json:"queue" yaml:"queue"`
	HTTP    *HTTPPublisherConfig `json:"http" yaml:"http"`
}

// QueueConfig selects a cloud messaging provider.
type QueueConfig struct {
	Provider string        `json:"provider" yaml:"provider"`
	SQS      *SQSConfig    `json:"sqs" yaml:"sqs"`
	SNS      *SNSConfig    `json:"sns" yaml:"sns"`
	GCP      *PubSubConfig `json:"gcp" yaml:"gcp"`
}

// AWSCredentials are optional static keys; when both are blank the default AWS chain applies.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// SQSConfig targets one SQS queue.
type SQSConfig struct {
	QueueURL       string `json:"queue_url" yaml:"queue_url"`
	Region         string `json:"region" yaml:"region"`
	AWSCredentials `json:",inline" yaml:",inline"`
}

// SNSConfig targets one SNS topic.
type SNSConfig struct {
	TopicARN       string `json:"topic_arn" yaml:"topic_arn"`
	Region         string `json:"region" yaml:"region"`
	AWSCredentials `json:",inline" yaml:",inline"`
}

// PubSubConfig targets one Google Cloud Pub/Sub topic.
type PubSubConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPPublisherConfig posts events to a webhook.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the configured per-call timeout or the default.
func (c HTTPPublisherConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultHTTPTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IsEnabled defaults to true when the flag is omitted.
func (c PublisherConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Accepts reports whether the publisher wants events of kind.
func (c PublisherConfig) Accepts(kind string) bool {
	return len(c.Kinds) == 0 || lo.Contains(c.Kinds, kind)
}

// FileRegistry holds the publisher definitions read from disk, in file order.
type FileRegistry struct {
	entries []PublisherConfig
}

// LoadFile reads a YAML or JSON publishers file. ${VAR} references are expanded from the environment.
func LoadFile(path string) (*FileRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	layout, err := decodeLayout([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(layout.Publishers) == 0 {
		return nil, errors.New("publishers file declares no publishers")
	}

	seen := make(map[string]struct{}, len(layout.Publishers))
	reg := &FileRegistry{entries: make([]PublisherConfig, 0, len(layout.Publishers))}
	for i, entry := range layout.Publishers {
		entry = entry.normalized()
		if err := entry.validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", entry.ID)
		}
		seen[entry.ID] = struct{}{}
		reg.entries = append(reg.entries, entry)
	}
	return reg, nil
}

// All returns a copy of every entry.
func (r *FileRegistry) All() []PublisherConfig {
	if r == nil {
		return nil
	}
	return append([]PublisherConfig(nil), r.entries...)
}

// Enabled returns only the entries that are switched on.
func (r *FileRegistry) Enabled() []PublisherConfig {
	return lo.Filter(r.All(), func(c PublisherConfig, _ int) bool { return c.IsEnabled() })
}

// ByID looks an entry up by id.
func (r *FileRegistry) ByID(id string) (PublisherConfig, bool) {
	id = strings.TrimSpace(id)
	return lo.Find(r.All(), func(c PublisherConfig) bool { return c.ID == id })
}

// decodeLayout picks the decoder from the extension; with no extension YAML then JSON is tried.
func decodeLayout(data []byte, ext string) (fileLayout, error) {
	var layout fileLayout
	switch strings.ToLower(strings.TrimSpace(ext)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &layout); err != nil {
			return fileLayout{}, fmt.Errorf("decode yaml publishers: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &layout); err != nil {
			return fileLayout{}, fmt.Errorf("decode json publishers: %w", err)
		}
	case "":
		if yerr := yaml.Unmarshal(data, &layout); yerr != nil {
			if jerr := json.Unmarshal(data, &layout); jerr != nil {
				return fileLayout{}, errors.New("publishers file format not recognized (expected YAML or JSON)")
			}
		}
	default:
		return fileLayout{}, fmt.Errorf("unsupported publishers file extension %q", ext)
	}
	return layout, nil
}

func (c PublisherConfig) normalized() PublisherConfig {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	c.Kinds = lo.Uniq(lo.FilterMap(c.Kinds, func(k string, _ int) (string, bool) {
		k = strings.ToLower(strings.TrimSpace(k))
		return k, k != ""
	}))

	if c.Queue != nil {
		q := *c.Queue
		q.Provider = strings.ToLower(strings.TrimSpace(q.Provider))
		if q.SQS != nil {
			s := *q.SQS
			s.QueueURL, s.Region = strings.TrimSpace(s.QueueURL), strings.TrimSpace(s.Region)
			s.AWSCredentials = s.AWSCredentials.trimmed()
			q.SQS = &s
		}
		if q.SNS != nil {
			s := *q.SNS
			s.TopicARN, s.Region = strings.TrimSpace(s.TopicARN), strings.TrimSpace(s.Region)
			s.AWSCredentials = s.AWSCredentials.trimmed()
			q.SNS = &s
		}
		if q.GCP != nil {
			g := *q.GCP
			g.ProjectID = strings.TrimSpace(g.ProjectID)
			g.Topic = strings.TrimSpace(g.Topic)
			g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
			q.GCP = &g
		}
		c.Queue = &q
	}

	if c.HTTP != nil {
		h := *c.HTTP
		h.URL = strings.TrimSpace(h.URL)
		h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
		if h.Method == "" {
			h.Method = defaultHTTPMethod
		}
		h.Headers = lo.PickBy(
			lo.MapEntries(h.Headers, func(k, v string) (string, string) {
				return strings.TrimSpace(k), strings.TrimSpace(v)
			}),
			func(k, v string) bool { return k != "" && v != "" },
		)
		c.HTTP = &h
	}
	return c
}

func (a AWSCredentials) trimmed() AWSCredentials {
	return AWSCredentials{
		AccessKeyID:     strings.TrimSpace(a.AccessKeyID),
		SecretAccessKey: strings.TrimSpace(a.SecretAccessKey),
	}
}

func (a AWSCredentials) static() bool {
	return a.AccessKeyID != "" || a.SecretAccessKey != ""
}

func (a AWSCredentials) validate(id, prefix string) error {
	if a.static() && (a.AccessKeyID == "" || a.SecretAccessKey == "") {
		return fmt.Errorf("%s.access_key_id and %s.secret_access_key must be set together for publisher %q", prefix, prefix, id)
	}
	return nil
}

func (c PublisherConfig) validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	for _, k := range c.Kinds {
		if !lo.Contains(knownKinds, k) {
			return fmt.Errorf("unknown event kind %q for publisher %q", k, c.ID)
		}
	}

	switch c.Type {
	case TypeHTTP:
		return c.validateHTTP()
	case TypeQueue:
		return c.validateQueue()
	case "":
		return fmt.Errorf("type is required for publisher %q", c.ID)
	default:
		return fmt.Errorf("type %q not supported for publisher %q", c.Type, c.ID)
	}
}

func (c PublisherConfig) validateHTTP() error {
	if c.HTTP == nil || c.HTTP.URL == "" {
		return fmt.Errorf("http.url is required for publisher %q", c.ID)
	}
	u, err := url.Parse(c.HTTP.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("http.url %q is not an absolute http(s) url for publisher %q", c.HTTP.URL, c.ID)
	}
	return nil
}

func (c PublisherConfig) validateQueue() error {
	if c.Queue == nil {
		return fmt.Errorf("queue config required for publisher %q", c.ID)
	}
	q := c.Queue
	switch q.Provider {
	case QueueProviderAWSSQS:
		if q.SQS == nil {
			return fmt.Errorf("queue.sqs config required for publisher %q", c.ID)
		}
		if q.SQS.QueueURL == "" || q.SQS.Region == "" {
			return fmt.Errorf("sqs.queue_url and sqs.region are required for publisher %q", c.ID)
		}
		return q.SQS.AWSCredentials.validate(c.ID, "sqs")
	case QueueProviderAWSSNS:
		if q.SNS == nil {
			return fmt.Errorf("queue.sns config required for publisher %q", c.ID)
		}
		if q.SNS.TopicARN == "" || q.SNS.Region == "" {
			return fmt.Errorf("sns.topic_arn and sns.region are required for publisher %q", c.ID)
		}
		return q.SNS.AWSCredentials.validate(c.ID, "sns")
	case QueueProviderGCP:
		if q.GCP == nil || q.GCP.ProjectID == "" || q.GCP.Topic == "" {
			return fmt.Errorf("gcp.project_id and gcp.topic are required for publisher %q", c.ID)
		}
		return nil
	default:
		return fmt.Errorf("queue provider %q not supported for publisher %q", q.Provider, c.ID)
	}
}
