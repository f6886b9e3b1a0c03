package pca9685

import "math"

// Register addresses.
const (
	RegMode1    byte = 0x00
	RegMode2    byte = 0x01
	RegLEDBase  byte = 0x06 // LED0_ON_L
	RegAllOnL   byte = 0xFA
	RegAllOnH   byte = 0xFB
	RegAllOffL  byte = 0xFC
	RegAllOffH  byte = 0xFD
	RegPrescale byte = 0xFE
)

// Mode1 bit positions.
const (
	Mode1AllCall = 0
	Mode1Sub3    = 1
	Mode1Sub2    = 2
	Mode1Sub1    = 3
	Mode1Sleep   = 4
	Mode1AI      = 5
	Mode1ExtClk  = 6
	Mode1Restart = 7
)

// Mode2 bit positions.
const (
	Mode2OutNE0 = 0
	Mode2OutNE1 = 1
	Mode2OutDrv = 2
	Mode2OCH    = 3
	Mode2Invrt  = 4
)

// Device limits and defaults.
const (
	OscillatorClock  = 25_000_000
	MinFrequency     = 24
	MaxFrequency     = 1526
	DefaultFrequency = 200
	MaxChannel       = 15
	Channels         = MaxChannel + 1
	MaxValue         = 4095
	MaxByte          = 255
	DefaultAddress   = 0x40

	// pwmResolution is the number of counter steps per PWM period.
	pwmResolution = 4096

	// registersPerChannel is the stride between consecutive channels.
	registersPerChannel = 4
)

// Bit returns a mask with only bit n set.
func Bit(n int) byte {
	return 1 << uint(n)
}

// SetBits returns v with every bit of mask set.
func SetBits(v, mask byte) byte {
	return v | mask
}

// ClearBits returns v with every bit of mask cleared.
func ClearBits(v, mask byte) byte {
	return v &^ mask
}

// ChannelRegister returns the OFF-low register address of a channel.
// The OFF-high register follows at +1. The channel is not validated here.
func ChannelRegister(channel int) byte {
	return RegLEDBase + 2 + byte(channel*registersPerChannel)
}

// LowByte returns the least significant byte of v.
func LowByte(v int) byte {
	return byte(v & 0xFF)
}

// HighByte returns the second byte of v.
func HighByte(v int) byte {
	return byte((v >> 8) & 0xFF)
}

// PrescaleFromFrequency converts a PWM frequency in Hz to the prescale
// register value using round-half-away-from-zero:
//
//	prescale = round(25 MHz / (4096 * f)) - 1
//
// The frequency is not validated here; callers check it against
// MinFrequency and MaxFrequency first.
func PrescaleFromFrequency(frequency int) int {
	return int(math.Round(float64(OscillatorClock)/(pwmResolution*float64(frequency)))) - 1
}

// FrequencyFromPrescale converts a prescale register value back to Hz:
//
//	f = round(25 MHz / ((prescale + 1) * 4096))
func FrequencyFromPrescale(prescale int) int {
	return int(math.Round(float64(OscillatorClock) / (float64(prescale+1) * pwmResolution)))
}

// ValidChannel reports whether channel is a valid output index.
func ValidChannel(channel int) bool {
	return channel >= 0 && channel <= MaxChannel
}

// ValidValue reports whether v fits the 12-bit PWM range.
func ValidValue(v int) bool {
	return v >= 0 && v <= MaxValue
}

// ValidFrequency reports whether hz is within the prescale limits.
func ValidFrequency(hz int) bool {
	return hz >= MinFrequency && hz <= MaxFrequency
}
