package outstation

import (
	"fmt"

	"github.com/dnp3go/dnp3/pkg/app"
)

// ControlRequest is one decoded control object: its point address and
// the raw, group/variation-specific control data that follows the
// index in the wire format.
type ControlRequest struct {
	Group      uint8
	Variation  uint8
	Index      int
	RawControl []byte
}

// controlObjectSize returns the number of data bytes that follow each
// indexed control point for the group/variation pairs this stack
// accepts as control objects (group 12 CROBs, group 41 analog outputs).
func controlObjectSize(group, variation uint8) (int, bool) {
	switch {
	case group == 12 && variation == 1: // CROB
		return 11, true
	case group == 41 && variation == 1: // analog output, 32-bit
		return 5, true
	case group == 41 && variation == 2: // analog output, 16-bit
		return 3, true
	case group == 41 && variation == 3: // analog output, float32
		return 5, true
	case group == 41 && variation == 4: // analog output, float64
		return 9, true
	default:
		return 0, false
	}
}

// ErrUnsupportedControlObject is returned for a group/variation this
// stack does not accept as a control object.
var ErrUnsupportedControlObject = fmt.Errorf("outstation: unsupported control object group/variation")

// DecodeControls walks the object headers in data (the portion of a
// SELECT/OPERATE/DIRECT_OPERATE fragment following the application
// header) and returns every control point they describe, in wire
// order. MaxControlsPerRequest is enforced later, in
// RunControlTransaction: decoding itself never fails just because a
// request names more points than the session is configured to act on.
func DecodeControls(data []byte) ([]ControlRequest, app.ObjectParseError, error) {
	var out []ControlRequest
	pos := 0
	for pos < len(data) {
		header, consumed, err := app.ParseObjectHeaderPrefix(data[pos:])
		if err != nil {
			return nil, err.(app.ObjectParseError), err
		}
		pos += consumed

		size, ok := controlObjectSize(header.Group, header.Variation)
		if !ok {
			return nil, app.ErrUnknownGroupVariation, ErrUnsupportedControlObject
		}

		if header.Indices == nil {
			return nil, app.ErrInvalidQualifierForVariation, fmt.Errorf("outstation: control objects require an indexed qualifier")
		}

		// On the wire each index is followed by its own control data, so
		// walk the objects from the end of the count field rather than
		// using the back-to-back index list the prefix parser reads.
		indexWidth := 1
		if header.Qualifier == app.QualifierCount2ByteIndexed {
			indexWidth = 2
		}
		pos -= len(header.Indices) * indexWidth
		for range header.Indices {
			if pos+indexWidth+size > len(data) {
				return nil, app.ErrInsufficientBytes, app.ErrInsufficientBytes
			}
			idx := int(data[pos])
			if indexWidth == 2 {
				idx |= int(data[pos+1]) << 8
			}
			pos += indexWidth
			out = append(out, ControlRequest{
				Group:      header.Group,
				Variation:  header.Variation,
				Index:      idx,
				RawControl: data[pos : pos+size],
			})
			pos += size
		}
	}
	return out, 0, nil
}

// RunControlTransaction applies requests through handler, guaranteeing
// BeginControls/EndControls bracket every control even if an individual
// Select/Operate call panics, and aggregating the strictest resulting
// CommandStatus across all controls. Once maxControls points have been
// processed, every further point is assigned CommandStatusNotSupported
// without invoking the handler at all -- "bounds the number of points
// processed" names the callback count, not the number of objects
// echoed back in the response.
func RunControlTransaction(handler ControlHandler, requests []ControlRequest, maxControls int, operate bool) (statuses []CommandStatus, overall CommandStatus) {
	handler.BeginControls()
	defer handler.EndControls()

	overall = CommandStatusSuccess
	statuses = make([]CommandStatus, len(requests))
	for i, req := range requests {
		var status CommandStatus
		if i >= maxControls {
			status = CommandStatusNotSupported
		} else if operate {
			status = handler.Operate(int(req.Group), req.Index, req.RawControl)
		} else {
			status = handler.Select(int(req.Group), req.Index, req.RawControl)
		}
		statuses[i] = status
		overall = Strictest(overall, status)
	}
	return statuses, overall
}
