package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/pkg/term/termios"
	"github.com/retroenv/retroflash/internal/firmware"
)

// Confirmer asks on the terminal before firmware is flashed. A terminal
// input is switched to cbreak mode so that a single key press answers the
// prompt, other inputs are read line by line.
type Confirmer struct {
	input  *os.File
	output io.Writer
}

// NewConfirmer returns a confirmer reading from input and prompting on
// output.
func NewConfirmer(input *os.File, output io.Writer) *Confirmer {
	return &Confirmer{
		input:  input,
		output: output,
	}
}

// Confirm implements firmware.Confirmer.
func (c *Confirmer) Confirm(id firmware.ChipID) (bool, error) {
	_, _ = fmt.Fprintf(c.output, "Flash chip %s detected.\nPress Y to flash the firmware, any other key to cancel: ", id)

	answer, err := c.readAnswer()
	_, _ = fmt.Fprintln(c.output)
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	return strings.EqualFold(answer, "y"), nil
}

func (c *Confirmer) readAnswer() (string, error) {
	var canonical syscall.Termios
	if err := termios.Tcgetattr(c.input.Fd(), &canonical); err != nil {
		return readLine(c.input)
	}

	cbreak := canonical
	termios.Cfmakecbreak(&cbreak)
	if err := termios.Tcsetattr(c.input.Fd(), termios.TCIFLUSH, &cbreak); err != nil {
		return readLine(c.input)
	}
	defer func() {
		_ = termios.Tcsetattr(c.input.Fd(), termios.TCIFLUSH, &canonical)
	}()

	key := make([]byte, 1)
	if _, err := c.input.Read(key); err != nil {
		return "", err
	}
	return string(key), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
