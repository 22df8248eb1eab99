package configurator

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	KindAssetNotFound ErrorKind = iota
	KindAssetFetch
	KindAssetParse
	KindSceneAttach
	KindUnsupportedEnvironment
)

func (k ErrorKind) String() string {
	switch k {
	case KindAssetNotFound:
		return "asset_not_found"
	case KindAssetFetch:
		return "asset_fetch_error"
	case KindAssetParse:
		return "asset_parse_error"
	case KindSceneAttach:
		return "scene_attach_error"
	case KindUnsupportedEnvironment:
		return "unsupported_environment"
	}
	return fmt.Sprintf("error_kind(%d)", int(k))
}

// Category groups kinds the way the fallback view reports them.
func (k ErrorKind) Category() string {
	switch k {
	case KindAssetNotFound, KindAssetFetch:
		return "network"
	case KindAssetParse:
		return "parse"
	case KindSceneAttach:
		return "scene-attach"
	case KindUnsupportedEnvironment:
		return "environment"
	}
	return "unknown"
}

// Retryable reports whether another attempt at the same path can succeed.
func (k ErrorKind) Retryable() bool {
	return k == KindAssetFetch
}

type AssetError struct {
	Kind   ErrorKind
	Path   string
	Reason string
	Err    error
}

func (e *AssetError) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AssetError) Unwrap() error { return e.Err }

// Cause lets errors.Cause walk through an AssetError.
func (e *AssetError) Cause() error { return e.Err }

func (e *AssetError) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(struct {
		Kind     string `json:"kind"`
		Category string `json:"category"`
		Path     string `json:"path,omitempty"`
		Reason   string `json:"reason,omitempty"`
		Cause    string `json:"cause,omitempty"`
		Message  string `json:"message"`
		Hint     string `json:"hint"`
	}{
		Kind:     e.Kind.String(),
		Category: e.Kind.Category(),
		Path:     e.Path,
		Reason:   e.Reason,
		Cause:    cause,
		Message:  e.Message(),
		Hint:     e.Hint(),
	})
}

// Message is the headline shown on the fallback view.
func (e *AssetError) Message() string {
	switch e.Kind {
	case KindAssetNotFound:
		return "3D model not found"
	case KindAssetFetch:
		return "Could not download the 3D model"
	case KindAssetParse:
		return "The 3D model could not be read"
	case KindSceneAttach:
		return "The 3D model could not be displayed"
	case KindUnsupportedEnvironment:
		return "3D Viewer Not Available"
	}
	return "Something went wrong"
}

// Hint is the troubleshooting text shown under the message.
func (e *AssetError) Hint() string {
	switch e.Kind {
	case KindAssetNotFound:
		return fmt.Sprintf("Place a glTF binary at %q, or point asset_path at an existing model. "+
			"Name accessory nodes with words like wheel, rim, spoiler, bumper, wing, light, extra, option or part_ "+
			"so they show up as toggles.", e.Path)
	case KindAssetFetch:
		return "Check the network connection and the asset server, then retry."
	case KindAssetParse:
		return "Export the model as binary glTF (.glb) with embedded buffers and try again."
	case KindSceneAttach:
		return "The model loaded but its node structure is not supported. Re-export it and retry."
	case KindUnsupportedEnvironment:
		return "Try a different browser or device with WebGL support."
	}
	return ""
}

func newAssetError(kind ErrorKind, path string, err error, reasonFormat string, args ...any) *AssetError {
	return &AssetError{
		Kind:   kind,
		Path:   path,
		Reason: fmt.Sprintf(reasonFormat, args...),
		Err:    err,
	}
}

// AsAssetError classifies err. Anything that is not already an AssetError
// is reported as kind.
func AsAssetError(err error, kind ErrorKind, path string) *AssetError {
	if err == nil {
		return nil
	}
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae
	}
	return &AssetError{Kind: kind, Path: path, Err: err}
}

// IsKind reports whether err carries an AssetError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *AssetError
	return errors.As(err, &ae) && ae.Kind == kind
}
