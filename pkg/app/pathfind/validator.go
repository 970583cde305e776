package pathfind

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/services"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app"
)

// attributeNames maps the attribute names accepted on the command line to
// their type codes
var attributeNames = map[string]uint32{
	"$STANDARD_INFORMATION": types.AttrTypeStandardInformation,
	"$ATTRIBUTE_LIST":       types.AttrTypeAttributeList,
	"$FILE_NAME":            types.AttrTypeFileName,
	"$OBJECT_ID":            types.AttrTypeObjectID,
	"$SECURITY_DESCRIPTOR":  types.AttrTypeSecurityDescriptor,
	"$VOLUME_NAME":          types.AttrTypeVolumeName,
	"$VOLUME_INFORMATION":   types.AttrTypeVolumeInformation,
	"$DATA":                 types.AttrTypeData,
	"$INDEX_ROOT":           types.AttrTypeIndexRoot,
	"$INDEX_ALLOCATION":     types.AttrTypeIndexAllocation,
	"$BITMAP":               types.AttrTypeBitmap,
	"$REPARSE_POINT":        types.AttrTypeReparsePoint,
}

// Validate validates a path reconstruction request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid image target", err)
	}

	if _, err := r.allocFilter(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid allocation filter", err)
	}

	if r.HasAttrID && r.AttrType == 0 {
		return app.NewError(app.ErrCodeInvalidInput, "attribute id requires an attribute type", nil)
	}

	if r.MaxResults < 0 {
		return app.NewError(app.ErrCodeInvalidInput, "max results cannot be negative", nil)
	}

	return nil
}

func (r *Request) allocFilter() (services.AllocFilter, error) {
	switch strings.ToLower(r.Alloc) {
	case "", AllocAny:
		return services.FilterAny, nil
	case AllocAllocated:
		return services.FilterAllocated, nil
	case AllocUnallocated:
		return services.FilterUnallocated, nil
	default:
		return services.FilterAny, fmt.Errorf("unknown allocation filter %q (valid: %s, %s, %s)",
			r.Alloc, AllocAny, AllocAllocated, AllocUnallocated)
	}
}

// ParseAttrType accepts an attribute type as a name such as "$DATA", a hex
// code such as "0x80" or a decimal code such as "128"
func ParseAttrType(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty attribute type")
	}

	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "$") && !isNumeric(name) {
		name = "$" + name
	}
	if code, ok := attributeNames[name]; ok {
		return code, nil
	}

	code, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown attribute type: %s", s)
	}
	if code == 0 {
		return 0, fmt.Errorf("attribute type cannot be zero")
	}
	return uint32(code), nil
}

func isNumeric(s string) bool {
	if strings.HasPrefix(s, "0X") {
		return len(s) > 2
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
