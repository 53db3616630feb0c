package domain

// Broker headers carried on Fedora JMS notifications.
const (
	HeaderResourceType = "org.fcrepo.jms.resourceType"
	HeaderEventType    = "org.fcrepo.jms.eventType"
	HeaderMessageID    = "message-id"
)

// Notification is the part of an inbound message the pipeline acts on.
type Notification struct {
	MessageID    string
	ResourceType string
	EventType    string
	Body         []byte
}

// NotificationFromHeaders builds a Notification from frame headers.
func NotificationFromHeaders(headers map[string]string, body []byte) Notification {
	return Notification{
		MessageID:    headers[HeaderMessageID],
		ResourceType: headers[HeaderResourceType],
		EventType:    headers[HeaderEventType],
		Body:         body,
	}
}
