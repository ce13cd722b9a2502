package clock

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingLandmark matches any *MissingLandmarkError with errors.Is
var ErrMissingLandmark = errors.New("missing landmark")

// MissingLandmarkError reports the required classes that could not be used.
// A class is listed when it was not detected or when it sits on the pivot.
type MissingLandmarkError struct {
	Classes []string
}

func (e *MissingLandmarkError) Error() string {
	return fmt.Sprintf("missing landmark(s): %s", strings.Join(e.Classes, ", "))
}

func (e *MissingLandmarkError) Is(target error) bool {
	return target == ErrMissingLandmark
}

// Missing returns the missing classes when err is a *MissingLandmarkError
func Missing(err error) []string {
	var mle *MissingLandmarkError
	if errors.As(err, &mle) {
		return mle.Classes
	}
	return nil
}
