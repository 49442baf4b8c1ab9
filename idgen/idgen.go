// Package idgen 生成批量运行与请求使用的唯一 ID，支持 Snowflake 与 Sonyflake 两种算法。
package idgen

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sony/sonyflake"

	"github.com/wyfcoding/binpack/config"
)

var (
	// ErrUnsupportedType 不支持的生成器类型。
	ErrUnsupportedType = errors.New("unsupported id generator type")
	// ErrParseTime 起始时间解析失败。
	ErrParseTime = errors.New("failed to parse start time")
	// ErrCreateGenerator 生成器创建失败。
	ErrCreateGenerator = errors.New("failed to create id generator")
	// ErrInvalidMachineID 机器 ID 越界。
	ErrInvalidMachineID = errors.New("machine_id must be between 0 and 65535")
)

const (
	maxRetries = 3
	idMask     = 0x7FFFFFFFFFFFFFFF
)

var defaultEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator ID 生成器。
type Generator interface {
	Generate() int64
}

func parseStart(s string) (time.Time, error) {
	if s == "" {
		return defaultEpoch, nil
	}
	st, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrParseTime, err)
	}
	return st, nil
}

// SnowflakeGenerator 雪花算法：每毫秒 4096 个，最多 1024 个节点。
type SnowflakeGenerator struct {
	node *snowflake.Node
}

// NewSnowflakeGenerator 创建雪花生成器。
func NewSnowflakeGenerator(cfg config.SnowflakeConfig) (*SnowflakeGenerator, error) {
	st, err := parseStart(cfg.StartTime)
	if err != nil {
		return nil, err
	}
	snowflake.Epoch = st.UnixMilli()

	node, err := snowflake.NewNode(cfg.MachineID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateGenerator, err)
	}

	slog.Debug("snowflake generator initialized", "machine_id", cfg.MachineID, "epoch", snowflake.Epoch)
	return &SnowflakeGenerator{node: node}, nil
}

// Generate 生成新 ID。
func (g *SnowflakeGenerator) Generate() int64 {
	return g.node.Generate().Int64()
}

// SonyflakeGenerator Sonyflake：每 10ms 256 个，最多 65536 个节点。
type SonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflakeGenerator 创建 Sonyflake 生成器。
func NewSonyflakeGenerator(cfg config.SnowflakeConfig) (*SonyflakeGenerator, error) {
	st, err := parseStart(cfg.StartTime)
	if err != nil {
		return nil, err
	}
	if cfg.MachineID < 0 || cfg.MachineID > 65535 {
		return nil, ErrInvalidMachineID
	}

	mid := uint16(cfg.MachineID & 0xFFFF)
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: st,
		MachineID: func() (uint16, error) { return mid, nil },
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateGenerator, err)
	}

	slog.Debug("sonyflake generator initialized", "machine_id", cfg.MachineID, "start_time", st)
	return &SonyflakeGenerator{sf: sf}, nil
}

// Generate 生成新 ID，连续失败时返回 0。
func (g *SonyflakeGenerator) Generate() int64 {
	for i := range maxRetries {
		id, err := g.sf.NextID()
		if err == nil {
			return int64(id & idMask)
		}
		slog.Warn("sonyflake generator failed, retrying", "retry", i+1, "error", err)
		time.Sleep(10 * time.Millisecond)
	}
	slog.Error("sonyflake generator failed after retries")
	return 0
}

// NewGenerator 按配置类型创建生成器。
func NewGenerator(cfg config.SnowflakeConfig) (Generator, error) {
	switch cfg.Type {
	case "sonyflake", "":
		return NewSonyflakeGenerator(cfg)
	case "snowflake":
		return NewSnowflakeGenerator(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}

var (
	defaultGenerator Generator
	once             sync.Once
)

// Init 初始化全局默认生成器，只生效一次。
func Init(cfg config.SnowflakeConfig) error {
	var err error
	once.Do(func() {
		defaultGenerator, err = NewGenerator(cfg)
	})
	return err
}

// RunID 生成运行 ID，形如 "R" + 十进制 ID。
// 默认生成器不可用时退化为随机十六进制串。
func RunID() string {
	if err := Init(config.SnowflakeConfig{Type: "sonyflake", MachineID: 1}); err != nil {
		slog.Warn("default id generator unavailable", "error", err)
	}
	if defaultGenerator != nil {
		if id := defaultGenerator.Generate(); id > 0 {
			return "R" + strconv.FormatInt(id, 10)
		}
	}
	s, err := GenerateRandomID(16)
	if err != nil {
		return "R" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return "R" + s
}
