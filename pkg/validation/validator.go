package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxGraphNodes       = 200000
	MaxGraphConnections = 1000000
	MaxIDLength         = 256

	// Cluster ids are "cluster-<system>-<uuid>"
	clusterIDPattern = regexp.MustCompile(`^cluster-.*-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

func init() {
	validate = validator.New()
	// Report fields by their JSON names so API errors match request bodies
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// ViewportRequest is the visible canvas region and zoom
type ViewportRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
	Zoom   float64 `json:"zoom" validate:"gt=0,lte=100"`
}

// NodeRequest is one node as sent by a client. Content problems (missing id,
// duplicates, unknown types) are reported by the engine as diagnostics rather
// than rejected here.
type NodeRequest struct {
	ID       string   `json:"id" validate:"max=256"`
	Type     string   `json:"type" validate:"max=32"`
	Label    string   `json:"label" validate:"max=1024"`
	System   string   `json:"system" validate:"max=64"`
	Impact   *float64 `json:"impact"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Color    string   `json:"color" validate:"omitempty,max=32"`
	Delay    float64  `json:"delay" validate:"gte=0"`
	Duration float64  `json:"duration" validate:"gte=0"`
}

// ConnectionRequest is a causal link between two node ids
type ConnectionRequest struct {
	ID       string   `json:"id" validate:"max=256"`
	Source   string   `json:"source" validate:"required,max=256"`
	Target   string   `json:"target" validate:"required,max=256"`
	Type     string   `json:"type" validate:"max=64"`
	Strength *float64 `json:"strength" validate:"omitempty,gte=0,lte=1"`
}

// GraphRequest replaces the scene graph held by the server
type GraphRequest struct {
	Nodes       []NodeRequest       `json:"nodes" validate:"dive"`
	Connections []ConnectionRequest `json:"connections" validate:"dive"`
}

// VirtualizeRequest carries a full graph plus the viewport to reduce it for
type VirtualizeRequest struct {
	Nodes       []NodeRequest       `json:"nodes" validate:"dive"`
	Connections []ConnectionRequest `json:"connections" validate:"dive"`
	Viewport    *ViewportRequest    `json:"viewport" validate:"required"`
}

// ConfigRequest is a partial engine configuration update
type ConfigRequest struct {
	MaxNodes            *int      `json:"maxNodes" validate:"omitempty,gte=0"`
	ViewportBuffer      *float64  `json:"viewportBuffer" validate:"omitempty,gte=0"`
	ClusteringThreshold *float64  `json:"clusteringThreshold" validate:"omitempty,gte=0,lte=100"`
	LODLevels           []float64 `json:"lodLevels" validate:"omitempty,max=16,dive,gt=0"`
	EnableCulling       *bool     `json:"enableCulling"`
	EnableClustering    *bool     `json:"enableClustering"`
}

// ValidateViewportRequest validates a viewport query
func ValidateViewportRequest(req *ViewportRequest) error {
	if req == nil {
		return errors.New("viewport request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateGraphRequest validates a scene graph upload
func ValidateGraphRequest(req *GraphRequest) error {
	if req == nil {
		return errors.New("graph request cannot be nil")
	}
	if err := ValidateGraphSize(len(req.Nodes), len(req.Connections)); err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateVirtualizeRequest validates a one-shot virtualization request
func ValidateVirtualizeRequest(req *VirtualizeRequest) error {
	if req == nil {
		return errors.New("virtualize request cannot be nil")
	}
	if err := ValidateGraphSize(len(req.Nodes), len(req.Connections)); err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateConfigRequest validates a partial configuration update
func ValidateConfigRequest(req *ConfigRequest) error {
	if req == nil {
		return errors.New("config request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	for i := 1; i < len(req.LODLevels); i++ {
		if req.LODLevels[i] <= req.LODLevels[i-1] {
			return fmt.Errorf("lodLevels: values must be strictly ascending, got %v", req.LODLevels)
		}
	}
	return nil
}

// ValidateGraphSize bounds the size of a submitted graph
func ValidateGraphSize(nodes, connections int) error {
	if nodes > MaxGraphNodes {
		return fmt.Errorf("nodes: must not exceed %d, got %d", MaxGraphNodes, nodes)
	}
	if connections > MaxGraphConnections {
		return fmt.Errorf("connections: must not exceed %d, got %d", MaxGraphConnections, connections)
	}
	return nil
}

// ValidateClusterID checks the shape of a cluster id taken from a URL
func ValidateClusterID(id string) error {
	if id == "" {
		return errors.New("cluster id cannot be empty")
	}
	if len(id) > MaxIDLength+64 {
		return fmt.Errorf("cluster id exceeds maximum length of %d characters", MaxIDLength+64)
	}
	if !clusterIDPattern.MatchString(id) {
		return fmt.Errorf("cluster id '%s' is invalid (expected cluster-<system>-<uuid>)", id)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := fieldPath(e.Namespace())
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "dive":
			// For array elements
			return fmt.Errorf("%s: invalid element in array", field)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}

// fieldPath drops the top-level struct name from a validator namespace
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
