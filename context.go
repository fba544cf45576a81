package authcore

import "context"

type ctxKey int

const (
	ctxKeyClientIP ctxKey = iota
	ctxKeyUserAgent
	ctxKeyDeviceID
	ctxKeyDeviceName
	ctxKeyPlatform
)

// WithClientIP attaches the caller's IP for session records, audit
// events, and risk scoring.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// WithDeviceID attaches a client-supplied device identifier. When
// absent the service derives a fingerprint from IP and user agent.
func WithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyDeviceID, id)
}

func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKeyDeviceName, name)
}

// WithPlatform attaches the client platform ("web", "ios", "android").
func WithPlatform(ctx context.Context, platform string) context.Context {
	return context.WithValue(ctx, ctxKeyPlatform, platform)
}

func ctxString(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}
