package component

import (
	"fmt"
	"slices"

	"tinygo.org/x/drivers"
)

// Params 创建传感器所需参数
type Params struct {
	ID         string
	Bus        drivers.I2C // nil 表示总线或多路复用器通道不可用
	Address    uint16
	ReplayFile string
}

// Constructor 传感器构造函数
type Constructor func(params Params) (Sensor, error)

// SensorFactory 传感器工厂
type SensorFactory struct {
	constructors map[string]Constructor
}

var defaultFactory = &SensorFactory{
	constructors: make(map[string]Constructor),
}

// RegisterSensorType 注册传感器型号
func RegisterSensorType(model string, constructor Constructor) {
	defaultFactory.constructors[model] = constructor
}

// CreateSensor 创建传感器实例
func CreateSensor(model string, params Params) (Sensor, error) {
	constructor, ok := defaultFactory.constructors[model]
	if !ok {
		return nil, fmt.Errorf("未知的传感器型号: %s", model)
	}
	return constructor(params)
}

// GetSupportedModels 获取支持的传感器型号列表
func GetSupportedModels() []string {
	models := make([]string, 0, len(defaultFactory.constructors))
	for model := range defaultFactory.constructors {
		models = append(models, model)
	}
	slices.Sort(models)
	return models
}

// RegisterSensorTypes 注册所有内置型号
func RegisterSensorTypes() {
	RegisterSensorType("mprls", func(p Params) (Sensor, error) {
		return NewMPRLS(p.ID, p.Bus, p.Address), nil
	})
	RegisterSensorType("nova", func(p Params) (Sensor, error) {
		return NewNova(p.ID, p.Bus, p.Address), nil
	})
	RegisterSensorType("mcp9600", func(p Params) (Sensor, error) {
		return NewThermocouple(p.ID, p.Bus, p.Address), nil
	})
	RegisterSensorType("file", func(p Params) (Sensor, error) {
		values, err := LoadReplayFile(p.ReplayFile)
		if err != nil {
			return nil, err
		}
		return NewFilePressureSensor(p.ID, values), nil
	})
	RegisterSensorType("file_temperature", func(p Params) (Sensor, error) {
		values, err := LoadReplayFile(p.ReplayFile)
		if err != nil {
			return nil, err
		}
		return NewFileTemperatureSensor(p.ID, values), nil
	})
}
