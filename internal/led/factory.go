package led

import (
	"os"
	"strings"

	"github.com/smazurov/tc420/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// StatusLED is the LED type driven by Manager on every supported board.
const StatusLED = "status"

// boards maps device tree model fragments to the sysfs LED used for status.
var boards = []struct {
	model string
	led   string
}{
	{"NanoPC-T6", "usr_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New detects the board and returns a matching controller, or a no-op
// controller when the board has no known status LED.
func New(logger logging.Logger) Controller {
	return newForModel(detectBoard(), sysfsLEDPath, logger)
}

func newForModel(model, root string, logger logging.Logger) Controller {
	for _, b := range boards {
		if strings.Contains(model, b.model) {
			logger.Info("Using sysfs status LED", "board_model", model, "led", b.led)
			return newSysfs(root, map[string]string{StatusLED: b.led})
		}
	}
	logger.Info("No LED support detected, using no-op controller", "board_model", model)
	return newNoop(logger)
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
