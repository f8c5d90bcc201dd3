// Package events defines the engine's push-event channels and their typed
// payloads.
//
// The engine identifies channels by string names on the wire. Inside the
// client those names exist only at the bridge boundary: they are parsed
// into a closed Kind enumeration exactly once, so a typo'd channel name
// fails loudly in one place instead of silently never matching.
package events

// Kind identifies one engine event channel.
type Kind int

const (
	// KindUnknown marks a wire name outside the known set. Never dispatched.
	KindUnknown Kind = iota

	KindFileLoaded
	KindFileClosed
	KindLoading
	KindError

	KindPreprocessProgress
	KindPreprocessComplete
	KindPreprocessError
	KindPreprocessCancelled

	KindTrainingProgress
	KindTrainingComplete
	KindTrainingError
	KindTrainingCancelled
	KindKernelStatus

	KindThemeChanged
)

// Wire channel names, shared with the engine.
const (
	nameFileLoaded = "file:loaded"
	nameFileClosed = "file:closed"
	nameLoading    = "app:loading"
	nameError      = "app:error"

	namePreprocessProgress  = "preprocessing:progress"
	namePreprocessComplete  = "preprocessing:complete"
	namePreprocessError     = "preprocessing:error"
	namePreprocessCancelled = "preprocessing:cancelled"

	nameTrainingProgress  = "ml:progress"
	nameTrainingComplete  = "ml:complete"
	nameTrainingError     = "ml:error"
	nameTrainingCancelled = "ml:cancelled"
	nameKernelStatus      = "ml:kernel-status"

	nameThemeChanged = "settings:theme-changed"
)

var kindNames = map[Kind]string{
	KindFileLoaded:          nameFileLoaded,
	KindFileClosed:          nameFileClosed,
	KindLoading:             nameLoading,
	KindError:               nameError,
	KindPreprocessProgress:  namePreprocessProgress,
	KindPreprocessComplete:  namePreprocessComplete,
	KindPreprocessError:     namePreprocessError,
	KindPreprocessCancelled: namePreprocessCancelled,
	KindTrainingProgress:    nameTrainingProgress,
	KindTrainingComplete:    nameTrainingComplete,
	KindTrainingError:       nameTrainingError,
	KindTrainingCancelled:   nameTrainingCancelled,
	KindKernelStatus:        nameKernelStatus,
	KindThemeChanged:        nameThemeChanged,
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// String returns the wire channel name.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind maps a wire channel name to its Kind.
func ParseKind(name string) (Kind, bool) {
	k, ok := namesToKind[name]
	return k, ok
}

// IsProgress reports whether the kind is a high-frequency progress channel,
// eligible for throttling at the bridge.
func (k Kind) IsProgress() bool {
	return k == KindPreprocessProgress || k == KindTrainingProgress
}

// IsTerminal reports whether the kind ends a job run. Terminal events are
// never throttled or dropped.
func (k Kind) IsTerminal() bool {
	switch k {
	case KindPreprocessComplete, KindPreprocessError, KindPreprocessCancelled,
		KindTrainingComplete, KindTrainingError, KindTrainingCancelled:
		return true
	}
	return false
}
