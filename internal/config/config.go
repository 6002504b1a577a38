package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/nfukui/chatline/internal/database"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	RedisAddr      string
	SigningKey     []byte
	AllowedOrigins []string
	CursorPolicy   database.CursorPolicy
	// UnreadPollDelay is an artificial delay applied to the unread
	// poll endpoint before responding, to pace aggressive pollers.
	// Zero disables it.
	UnreadPollDelay time.Duration
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func parseCursorPolicy(policy string) (database.CursorPolicy, error) {
	switch database.CursorPolicy(policy) {
	case "":
		return database.PolicyOverwrite, nil
	case database.PolicyOverwrite:
		return database.PolicyOverwrite, nil
	case database.PolicyMax:
		return database.PolicyMax, nil
	default:
		return "", fmt.Errorf("unknown cursor policy %q", policy)
	}
}

func NewConfig(serverAddr, databaseDSN, redisAddr, base64Secret string, allowedOrigins []string, cursorPolicy string, unreadPollDelay time.Duration) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if unreadPollDelay < 0 {
		return nil, fmt.Errorf("unread poll delay cannot be negative")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	policy, err := parseCursorPolicy(cursorPolicy)
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerAddr:      serverAddr,
		DatabaseDSN:     databaseDSN,
		RedisAddr:       redisAddr,
		SigningKey:      signingKey,
		AllowedOrigins:  allowedOrigins,
		CursorPolicy:    policy,
		UnreadPollDelay: unreadPollDelay,
	}, nil
}
