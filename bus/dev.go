package bus

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// i2c-dev ioctl
const (
	i2cRdwr = 0x0707
	i2cMRd  = 0x0001
)

// i2cMsg 对应内核 struct i2c_msg
type i2cMsg struct {
	addr   uint16
	flags  uint16
	length uint16
	buf    *byte
}

// i2cRdwrData 对应内核 struct i2c_rdwr_ioctl_data
type i2cRdwrData struct {
	msgs  *i2cMsg
	nmsgs uint32
}

// Dev Linux i2c-dev 字符设备
type Dev struct {
	mu   sync.Mutex
	fd   int
	path string
}

// Open 打开 /dev/i2c-N
func Open(path string) (*Dev, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("打开 I2C 设备 %s 失败：%w", path, err)
	}
	return &Dev{fd: fd, path: path}, nil
}

// Tx 用一次 I2C_RDWR 完成先写后读，两段之间是重复起始条件，不释放总线
func (d *Dev) Tx(addr uint16, w, r []byte) error {
	msgs := make([]i2cMsg, 0, 2)
	if len(w) > 0 {
		msgs = append(msgs, i2cMsg{addr: addr, length: uint16(len(w)), buf: &w[0]})
	}
	if len(r) > 0 {
		msgs = append(msgs, i2cMsg{addr: addr, flags: i2cMRd, length: uint16(len(r)), buf: &r[0]})
	}
	if len(msgs) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return fmt.Errorf("I2C 设备 %s 已关闭", d.path)
	}

	data := i2cRdwrData{msgs: &msgs[0], nmsgs: uint32(len(msgs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), i2cRdwr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(msgs)
	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	if errno != 0 {
		return fmt.Errorf("I2C 事务 0x%02x 失败：%w", addr, errno)
	}
	return nil
}

// ReadRegister 读寄存器
func (d *Dev) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return d.Tx(uint16(addr), []byte{reg}, buf)
}

// WriteRegister 写寄存器
func (d *Dev) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return d.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}

// Close 关闭设备
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

func (d *Dev) String() string { return d.path }
