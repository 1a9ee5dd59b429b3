// Package telemetry 任务事件日志和压力 CSV。两个输出都只追加，每次写入后立即 fsync。
package telemetry

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
)

// Sink 只追加的输出
type Sink interface {
	io.Writer
	Sync() error
}

// Recorder 事件日志与压力表的写入器
type Recorder struct {
	mu        sync.Mutex
	events    Sink
	pressures Sink
	now       func() int64 // 系统时间（毫秒）
	tplus     func() int64 // 任务时间（毫秒）
	echo      bool

	rows      atomic.Int64
	eventsN   atomic.Int64
	writeErrs atomic.Int64
}

// NewRecorder 创建写入器，echo 为 true 时事件同时打印到控制台
func NewRecorder(events, pressures Sink, now, tplus func() int64, echo bool) *Recorder {
	return &Recorder{events: events, pressures: pressures, now: now, tplus: tplus, echo: echo}
}

func (r *Recorder) writeSynced(s Sink, data []byte) {
	if s == nil {
		return
	}
	if _, err := s.Write(data); err != nil {
		r.writeErrs.Add(1)
		log.Printf("❌ 写入遥测文件失败: %v", err)
		return
	}
	if err := s.Sync(); err != nil {
		r.writeErrs.Add(1)
		log.Printf("❌ 遥测文件落盘失败: %v", err)
	}
}

// Eventf 写一行事件，行首为任务时间
func (r *Recorder) Eventf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("T+ %d ms\t%s\n", r.tplus(), msg)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeSynced(r.events, []byte(line))
	r.eventsN.Add(1)
	if r.echo {
		log.Printf("📝 %s", line[:len(line)-1])
	}
}

// WriteHeader 写压力表表头
func (r *Recorder) WriteHeader(columns []string) error {
	header := append([]string{"Time (ms)", "T+ (ms)"}, columns...)
	data, err := encodeRecord(header)
	if err != nil {
		return fmt.Errorf("生成表头失败：%w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pressures == nil {
		return nil
	}
	if _, err := r.pressures.Write(data); err != nil {
		return fmt.Errorf("写入表头失败：%w", err)
	}
	return r.pressures.Sync()
}

// Row 写一行压力数据：系统时间、任务时间、各列读数
func (r *Recorder) Row(values []float64) {
	record := make([]string, 0, len(values)+2)
	record = append(record, strconv.FormatInt(r.now(), 10), strconv.FormatInt(r.tplus(), 10))
	for _, v := range values {
		record = append(record, strconv.FormatFloat(v, 'f', -1, 64))
	}
	data, err := encodeRecord(record)
	if err != nil {
		log.Printf("❌ 生成压力数据行失败: %v", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeSynced(r.pressures, data)
	r.rows.Add(1)
}

// Stats 写入计数
type Stats struct {
	Rows        int64 `json:"rows"`
	Events      int64 `json:"events"`
	WriteErrors int64 `json:"writeErrors"`
}

func (r *Recorder) Stats() Stats {
	return Stats{Rows: r.rows.Load(), Events: r.eventsN.Load(), WriteErrors: r.writeErrs.Load()}
}

func encodeRecord(record []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(record); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// OpenFiles 在 dir 下新建 <stamp>_output.txt 和 <stamp>_pressures.csv，已存在时报错
func OpenFiles(dir string, stamp int64) (events, pressures *os.File, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("创建遥测目录失败：%w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL | os.O_APPEND
	events, err = os.OpenFile(filepath.Join(dir, fmt.Sprintf("%d_output.txt", stamp)), flags, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("创建事件日志失败：%w", err)
	}
	pressures, err = os.OpenFile(filepath.Join(dir, fmt.Sprintf("%d_pressures.csv", stamp)), flags, 0o644)
	if err != nil {
		events.Close()
		return nil, nil, fmt.Errorf("创建压力表失败：%w", err)
	}
	return events, pressures, nil
}

// MemorySink 内存输出，用于测试和回放比对
type MemorySink struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	syncs int
}

func (m *MemorySink) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Write(p)
}

func (m *MemorySink) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs++
	return nil
}

func (m *MemorySink) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.String()
}

// Syncs Sync 调用次数
func (m *MemorySink) Syncs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncs
}
