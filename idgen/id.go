package idgen

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ID Snowflake ID。最高位恒为 0，因此可无损转换为 int64。
//
// JSON 编码为字符串，避免 JavaScript 数字精度丢失。
type ID uint64

// Decompose 拆出各字段
func (id ID) Decompose() Parts {
	return Parts{
		Timestamp:    int64(id >> TimestampShift & MaxTimestamp),
		DatacenterID: int64(id >> DatacenterIDShift & MaxDatacenterID),
		WorkerID:     int64(id >> WorkerIDShift & MaxWorkerID),
		Sequence:     int64(id & MaxSequence),
	}
}

// Time 生成时刻 (UTC)，epoch 为生成器使用的 Unix 毫秒起点
func (id ID) Time(epoch int64) time.Time {
	return time.UnixMilli(epoch + id.Decompose().Timestamp).UTC()
}

func (id ID) Uint64() uint64 { return uint64(id) }

func (id ID) Int64() int64 { return int64(id) }

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ========================================
// Base62 编码
// ========================================

const base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// maxBase62Len ceil(log62(2^64))
const maxBase62Len = 11

var base62Index [256]byte

func init() {
	for i := range base62Index {
		base62Index[i] = 0xFF
	}
	for i := 0; i < len(base62Alphabet); i++ {
		base62Index[base62Alphabet[i]] = byte(i)
	}
}

// Base62 URL 安全的短编码
func (id ID) Base62() string {
	if id == 0 {
		return "0"
	}
	var buf [maxBase62Len]byte
	i := len(buf)
	for v := uint64(id); v > 0; v /= 62 {
		i--
		buf[i] = base62Alphabet[v%62]
	}
	return string(buf[i:])
}

// ParseBase62 解析 Base62 字符串
func ParseBase62(s string) (ID, error) {
	if s == "" || len(s) > maxBase62Len {
		return 0, invalidID("base62 %q: bad length", s)
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		d := base62Index[s[i]]
		if d == 0xFF {
			return 0, invalidID("base62 %q: bad character %q", s, s[i])
		}
		if v > (math.MaxUint64-uint64(d))/62 {
			return 0, invalidID("base62 %q: overflows uint64", s)
		}
		v = v*62 + uint64(d)
	}
	return checkReserved(v)
}

// ParseString 解析十进制字符串
func ParseString(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, invalidID("parse %q: %v", s, err)
	}
	return checkReserved(v)
}

func checkReserved(v uint64) (ID, error) {
	if v>>63 != 0 {
		return 0, invalidID("%d has the reserved bit set", v)
	}
	return ID(v), nil
}

// ========================================
// 编解码接口 (JSON / Text / SQL)
// ========================================

func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON 同时接受字符串与数字，null 保持原值不变
func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := ParseString(s)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	v, err := ParseString(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Scan 实现 sql.Scanner，支持 BIGINT 与字符串列
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*id = 0
	case int64:
		if v < 0 {
			return invalidID("negative value %d", v)
		}
		*id = ID(v)
	case []byte:
		return id.UnmarshalText(v)
	case string:
		return id.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("idgen: cannot scan %T into ID", src)
	}
	return nil
}

// Value 实现 driver.Valuer，以 BIGINT 存储
func (id ID) Value() (driver.Value, error) {
	return int64(id), nil
}
