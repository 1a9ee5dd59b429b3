package define

import "fmt"

// TankState 储气罐生命周期状态
type TankState int32

const (
	TankUnknown TankState = iota
	TankUnreachable
	TankUnsafe
	TankCritical
	TankReady
	TankLastResort
	TankSampled
	TankFailedSample
)

func (s TankState) String() string {
	switch s {
	case TankUnknown:
		return "UNKNOWN"
	case TankUnreachable:
		return "UNREACHABLE"
	case TankUnsafe:
		return "UNSAFE"
	case TankCritical:
		return "CRITICAL"
	case TankReady:
		return "READY"
	case TankLastResort:
		return "LAST_RESORT"
	case TankSampled:
		return "SAMPLED"
	case TankFailedSample:
		return "FAILED_SAMPLE"
	default:
		return fmt.Sprintf("TankState(%d)", int32(s))
	}
}

// PlumbingState 主管路状态
type PlumbingState int32

const (
	PlumbingReady PlumbingState = iota
	PlumbingMainLineFailure
)

func (s PlumbingState) String() string {
	switch s {
	case PlumbingReady:
		return "READY"
	case PlumbingMainLineFailure:
		return "MAIN_LINE_FAILURE"
	default:
		return fmt.Sprintf("PlumbingState(%d)", int32(s))
	}
}
