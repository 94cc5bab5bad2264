package logging

import (
	"context"
)

const (
	RequestIDKey   = "request_id"
	EventIDKey     = "event_id"
	ReceiverIDKey  = "receiver_id"
	ServiceNameKey = "service_name"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

func WithReceiverID(ctx context.Context, receiverID string) context.Context {
	return context.WithValue(ctx, ReceiverIDKey, receiverID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func GetEventID(ctx context.Context) string {
	if eventID, ok := ctx.Value(EventIDKey).(string); ok {
		return eventID
	}
	return ""
}

func GetReceiverID(ctx context.Context) string {
	if receiverID, ok := ctx.Value(ReceiverIDKey).(string); ok {
		return receiverID
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}

	if eventID := GetEventID(ctx); eventID != "" {
		fields = append(fields, "event_id", eventID)
	}

	if receiverID := GetReceiverID(ctx); receiverID != "" {
		fields = append(fields, "receiver_id", receiverID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
