package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HeaderHubSignature = "X-Hub-Signature"
	HeaderHubEvent     = "X-Hub-Event"
	HeaderHubDelivery  = "X-Hub-Delivery"
	HeaderHubInfo      = "X-Hub-Info"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

const (
	DefaultEventTopic = "webhook_events"
)

const (
	DefaultMongoDBName = "hookd"
	DefaultArchiveColl = "events_archive"
)

const (
	DefaultJobTTL = 24 * time.Hour
)
