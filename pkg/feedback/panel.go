// Package feedback implements device.Feedback outputs: a simulated
// LCD/LED/buzzer panel, MQTT event publishing and a fan-out.
package feedback

import (
	"strings"
	"sync"
	"time"

	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/identifier"
	"github.com/pion/logging"
)

// LCDWidth is the character width of the 16x2 display.
const LCDWidth = 16

// LED is the lit status LED.
type LED int

const (
	LEDOff LED = iota
	LEDBlue
	LEDGreen
	LEDRed
)

// String returns the LED colour.
func (l LED) String() string {
	switch l {
	case LEDBlue:
		return "blue"
	case LEDGreen:
		return "green"
	case LEDRed:
		return "red"
	default:
		return "off"
	}
}

// Pattern is a repeated buzzer tone.
type Pattern struct {
	Hz     int
	On     time.Duration
	Off    time.Duration
	Repeat int
}

// Duration is the total time the pattern takes to play.
func (p Pattern) Duration() time.Duration {
	if p.Repeat <= 0 {
		return 0
	}
	return time.Duration(p.Repeat)*p.On + time.Duration(p.Repeat-1)*p.Off
}

// Buzzer patterns of the reference device.
var (
	GrantPattern  = Pattern{Hz: 2000, On: 200 * time.Millisecond, Off: 150 * time.Millisecond, Repeat: 2}
	DenyPattern   = Pattern{Hz: 1800, On: 120 * time.Millisecond, Off: 130 * time.Millisecond, Repeat: 6}
	EnrollPattern = Pattern{Hz: 2200, On: 180 * time.Millisecond, Off: 140 * time.Millisecond, Repeat: 2}
)

// Screen is what the panel currently shows.
type Screen struct {
	Lines   [2]string
	LED     LED
	Pattern Pattern // zero when silent
}

// PanelConfig configures a Panel.
type PanelConfig struct {
	// PlaySound blocks for the buzzer pattern duration, as a real buzzer
	// driven from the control loop would.
	PlaySound bool

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// OnRender is called with every new screen. Optional.
	OnRender func(Screen)
}

// Panel renders feedback as the reference 16x2 LCD, a three-colour LED and
// a buzzer.
type Panel struct {
	config PanelConfig
	log    logging.LeveledLogger

	mu     sync.Mutex
	screen Screen
}

// NewPanel creates a blank panel.
func NewPanel(config PanelConfig) *Panel {
	p := &Panel{config: config}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("panel")
	}
	return p
}

// Screen returns the current screen.
func (p *Panel) Screen() Screen {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screen
}

// OnIdle shows the scan prompt with the blue LED.
func (p *Panel) OnIdle() {
	p.render(Screen{
		Lines: [2]string{lcdLine(0, "  Access Control "), lcdLine(0, " Scan Your Card  ")},
		LED:   LEDBlue,
	})
}

// OnEnrollmentPrompt asks for the first card with the red LED.
func (p *Panel) OnEnrollmentPrompt() {
	p.render(Screen{
		Lines: [2]string{lcdLine(0, "No Master Found!"), lcdLine(0, "Tap to ENROLL...")},
		LED:   LEDRed,
	})
}

// OnEnrollmentCommitted confirms the stored card and plays EnrollPattern.
func (p *Panel) OnEnrollmentCommitted(id identifier.Identifier) {
	if p.log != nil {
		p.log.Infof("enrolled master uid: %s", id)
	}
	p.render(Screen{
		Lines:   [2]string{lcdLine(0, "Master Enrolled!"), lcdLine(0, " Ready to Scan  ")},
		LED:     LEDRed,
		Pattern: EnrollPattern,
	})
}

// OnAccessGranted lights green and plays GrantPattern.
func (p *Panel) OnAccessGranted() {
	p.render(Screen{
		Lines:   [2]string{lcdLine(2, "Permission"), lcdLine(0, " Access Granted ")},
		LED:     LEDGreen,
		Pattern: GrantPattern,
	})
}

// OnAccessDenied lights red and plays DenyPattern.
func (p *Panel) OnAccessDenied() {
	p.render(Screen{
		Lines:   [2]string{lcdLine(2, "Permission"), lcdLine(0, " Access Denied  ")},
		LED:     LEDRed,
		Pattern: DenyPattern,
	})
}

func (p *Panel) render(s Screen) {
	p.mu.Lock()
	p.screen = s
	p.mu.Unlock()

	if p.log != nil {
		p.log.Infof("[%s] [%s] led=%s", s.Lines[0], s.Lines[1], s.LED)
		if s.Pattern.Repeat > 0 {
			p.log.Debugf("buzzer %dHz x%d", s.Pattern.Hz, s.Pattern.Repeat)
		}
	}
	if p.config.OnRender != nil {
		p.config.OnRender(s)
	}
	if p.config.PlaySound {
		time.Sleep(s.Pattern.Duration())
	}
}

// lcdLine places text at column col and clips or pads it to the display width.
func lcdLine(col int, text string) string {
	line := strings.Repeat(" ", col) + text
	if len(line) > LCDWidth {
		return line[:LCDWidth]
	}
	return line + strings.Repeat(" ", LCDWidth-len(line))
}

var _ device.Feedback = (*Panel)(nil)
