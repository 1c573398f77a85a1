package cache

import (
	"context"
	"time"
)

// WebhookDeduper 基于 SETNX 的回调事件去重
type WebhookDeduper struct{}

// NewWebhookDeduper 创建回调去重器
func NewWebhookDeduper() *WebhookDeduper {
	return &WebhookDeduper{}
}

// Claim 抢占事件处理权；Redis 未启用时始终放行，由数据库唯一约束兜底
func (d *WebhookDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return SetNX(ctx, key, time.Now().Unix(), ttl)
}

// Release 释放处理权
func (d *WebhookDeduper) Release(ctx context.Context, key string) error {
	return Del(ctx, key)
}
