package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis server is not ready")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)
