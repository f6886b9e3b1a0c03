//go:build !linux

package gpio

func openLine(Config) (Line, error) {
	return nil, ErrUnsupported
}
