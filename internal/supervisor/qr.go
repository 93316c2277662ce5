// ABOUTME: Terminal QR code renderer for transport pairing challenges
// ABOUTME: Draws half-block QR codes with qrterminal

package supervisor

import (
	"io"
	"os"

	"github.com/mdp/qrterminal/v3"
)

// QRRenderer shows a pairing token to the operator.
type QRRenderer interface {
	Render(token string)
}

// TerminalQR renders tokens as half-block QR codes.
type TerminalQR struct {
	Out io.Writer // defaults to os.Stdout
}

// Render implements QRRenderer.
func (q TerminalQR) Render(token string) {
	out := q.Out
	if out == nil {
		out = os.Stdout
	}
	qrterminal.GenerateHalfBlock(token, qrterminal.L, out)
}
