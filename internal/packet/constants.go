package packet

// Report layout:
//
//	+------+------+--------+-------------------------+----------+
//	| 0x55 | 0xAA | opcode |  payload (zero padded)  | checksum |
//	+------+------+--------+-------------------------+----------+
//	  [0]    [1]     [2]            [3..62]              [63]
//
// On the wire every report is preceded by the HID report id 0x00, which is
// not covered by the checksum.
const (
	// ReportSize is the payload size of one HID output report.
	ReportSize = 64
	// FrameSize is the number of bytes written per report, report id included.
	FrameSize = ReportSize + 1
	// ReportID is the HID report id; the controller does not number reports.
	ReportID = 0x00

	SyncByte0 = 0x55
	SyncByte1 = 0xAA

	offsetOpcode   = 2
	offsetPayload  = 3
	offsetChecksum = ReportSize - 1

	// ChannelCount is the number of channel levels carried by a step report.
	ChannelCount = 5

	// yearBase is subtracted from the calendar year in time-sync reports.
	yearBase = 2000
)

// Opcode identifies the report type in byte 2.
type Opcode byte

// Opcodes understood by the controller firmware.
const (
	OpTimeSync     Opcode = 0x01
	OpProgramStart Opcode = 0x02
	OpProgramEnd   Opcode = 0x03
	OpStep         Opcode = 0x04
)

// String returns a short label used in logs and metrics.
func (o Opcode) String() string {
	switch o {
	case OpTimeSync:
		return "time_sync"
	case OpProgramStart:
		return "program_start"
	case OpProgramEnd:
		return "program_end"
	case OpStep:
		return "step"
	default:
		return "unknown"
	}
}
