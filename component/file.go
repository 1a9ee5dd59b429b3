package component

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"sampler/define"
)

// LoadReplayFile 读取回放文件，每行一个读数，空行和 # 开头的行跳过。
// 无法解析的行记为无效读数，保证行号与读数位置一一对应。
func LoadReplayFile(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开回放文件失败：%w", err)
	}
	defer file.Close()

	var values []float64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			v = define.InvalidReading
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取回放文件失败：%w", err)
	}
	return values, nil
}

// replay 按顺序消费的读数列表，读完后只返回无效值
type replay struct {
	mu     sync.Mutex
	values []float64
	pos    int
}

func (r *replay) next() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextLocked()
}

func (r *replay) nextLocked() float64 {
	i := r.pos
	r.pos++
	if i >= len(r.values) {
		return define.InvalidReading
	}
	return r.values[i]
}

// triple 固定消费三个位置，即使已经读完
func (r *replay) triple() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var samples [3]float64
	for i := range samples {
		samples[i] = r.nextLocked()
	}
	return TripleMedian(samples)
}

// Position 已消费的位置数
func (r *replay) Position() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// FilePressureSensor 文件回放压力传感器
type FilePressureSensor struct {
	base
	replay
}

// NewFilePressureSensor 用给定读数创建回放压力传感器，读数为空时未就绪
func NewFilePressureSensor(id string, values []float64) *FilePressureSensor {
	return &FilePressureSensor{
		base:   base{id: id, model: "file", ready: len(values) > 0},
		replay: replay{values: values},
	}
}

// Pressure 下一个读数
func (f *FilePressureSensor) Pressure() float64 { return f.next() }

// TriplePressure 接下来三个读数的中值
func (f *FilePressureSensor) TriplePressure() float64 { return f.triple() }

// FileTemperatureSensor 文件回放温度传感器
type FileTemperatureSensor struct {
	base
	replay
}

// NewFileTemperatureSensor 用给定读数创建回放温度传感器
func NewFileTemperatureSensor(id string, values []float64) *FileTemperatureSensor {
	return &FileTemperatureSensor{
		base:   base{id: id, model: "file_temperature", ready: len(values) > 0},
		replay: replay{values: values},
	}
}

// Temperature 下一个读数
func (f *FileTemperatureSensor) Temperature() float64 { return f.next() }

// TripleTemperature 接下来三个读数的中值
func (f *FileTemperatureSensor) TripleTemperature() float64 { return f.triple() }
