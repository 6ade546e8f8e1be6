// Package pool provides pooled string builders for script compilation.
//
// Every save compiles a handful of small script pieces (property steps, map
// literals, meta-property argument lists). Reusing their buffers keeps
// allocation flat when a unit of work batches thousands of entities.
//
// Usage:
//
//	sb := pool.GetStringBuilder()
//	defer pool.PutStringBuilder(sb)
//
//	sb.WriteString(".property(")
//	sb.WriteString(key)
//	sb.WriteByte(')')
//	script := sb.String()
package pool

import (
	"sync"
)

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active
	Enabled bool

	// MaxBuilderSize is the largest buffer capacity returned to the pool
	MaxBuilderSize int
}

var globalConfig = PoolConfig{
	Enabled:        true,
	MaxBuilderSize: 64 * 1024,
}

var stringBuilderPool = sync.Pool{
	New: func() any {
		return &PooledStringBuilder{buf: make([]byte, 0, 256)}
	},
}

// Configure sets global pool configuration.
// Should be called early during initialization.
func Configure(config PoolConfig) {
	if config.MaxBuilderSize <= 0 {
		config.MaxBuilderSize = 64 * 1024
	}
	globalConfig = config
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// PooledStringBuilder is a poolable string builder.
type PooledStringBuilder struct {
	buf []byte
}

// WriteString appends a string to the builder.
func (b *PooledStringBuilder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// Write implements io.Writer so the builder can be used with fmt.Fprintf.
func (b *PooledStringBuilder) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// WriteByte appends a byte to the builder.
func (b *PooledStringBuilder) WriteByte(c byte) {
	b.buf = append(b.buf, c)
}

// String returns the built string.
func (b *PooledStringBuilder) String() string {
	return string(b.buf)
}

// Len returns current length.
func (b *PooledStringBuilder) Len() int {
	return len(b.buf)
}

// Reset clears the builder for reuse.
func (b *PooledStringBuilder) Reset() {
	b.buf = b.buf[:0]
}

// GetStringBuilder returns a string builder from the pool.
func GetStringBuilder() *PooledStringBuilder {
	if !globalConfig.Enabled {
		return &PooledStringBuilder{buf: make([]byte, 0, 256)}
	}
	b := stringBuilderPool.Get().(*PooledStringBuilder)
	b.Reset()
	return b
}

// PutStringBuilder returns a string builder to the pool.
func PutStringBuilder(b *PooledStringBuilder) {
	if !globalConfig.Enabled || b == nil {
		return
	}
	if cap(b.buf) > globalConfig.MaxBuilderSize {
		return
	}
	b.Reset()
	stringBuilderPool.Put(b)
}
