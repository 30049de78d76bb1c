package stream

import "time"

// Topic carries the per-topic tuning the stream log needs.
type Topic struct {
	Name          string
	MaxLen        int64
	ConsumerGroup string
	BatchCount    int64
	BlockMs       time.Duration
}

// routingTable maps the lower-cased aggregate type to its topic.
// Unrecognized aggregates default to "orders" — a deployment policy knob,
// not a semantic guarantee.
var routingTable = map[string]string{
	"order":        "orders",
	"user":         "users",
	"product":      "products",
	"notification": "notifications",
	"email":        "notifications",
	"sms":          "notifications",
	"payment":      "payments",
	"transaction":  "payments",
	"billing":      "payments",
	"inventory":    "inventory",
	"stock":        "inventory",
	"warehouse":    "inventory",
}

const defaultTopic = "orders"
