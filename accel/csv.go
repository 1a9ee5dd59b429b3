package accel

import (
	"encoding/csv"
	"strconv"
	"sync"

	"sampler/telemetry"
)

// syncEvery 每写入多少行落盘一次
const syncEvery = 50

var header = []string{"T+ (ms)", "X (ug)", "Y (ug)", "Z (ug)"}

// csvWriter 振动数据表，表头只写一次
type csvWriter struct {
	mu      sync.Mutex
	sink    telemetry.Sink
	w       *csv.Writer
	pending int
	wrote   bool
}

func newCSVWriter(sink telemetry.Sink) *csvWriter {
	c := &csvWriter{sink: sink}
	if sink != nil {
		c.w = csv.NewWriter(sink)
	}
	return c
}

func (c *csvWriter) header() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil || c.wrote {
		return nil
	}
	c.wrote = true
	if err := c.w.Write(header); err != nil {
		return err
	}
	return c.flushLocked()
}

func (c *csvWriter) row(tplus int64, s Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return nil
	}
	record := []string{
		strconv.FormatInt(tplus, 10),
		strconv.FormatInt(int64(s.X), 10),
		strconv.FormatInt(int64(s.Y), 10),
		strconv.FormatInt(int64(s.Z), 10),
	}
	if err := c.w.Write(record); err != nil {
		return err
	}
	c.pending++
	if c.pending >= syncEvery {
		return c.flushLocked()
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvWriter) flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return nil
	}
	return c.flushLocked()
}

func (c *csvWriter) flushLocked() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	c.pending = 0
	return c.sink.Sync()
}
