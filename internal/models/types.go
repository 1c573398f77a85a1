package models

import (
	"database/sql/driver"
	"encoding/json"
)

// JSON 通用键值类型，用于存储处理方配置与回调载荷
type JSON map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	switch raw := value.(type) {
	case []byte:
		return json.Unmarshal(raw, j)
	case string:
		return json.Unmarshal([]byte(raw), j)
	default:
		return nil
	}
}

// BoolPtr 返回布尔指针
func BoolPtr(v bool) *bool {
	return &v
}
