// Package schema parses interface descriptors and checks them against the
// descriptor rules before anything reaches a backend.
package schema

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/entities"
	domainErrors "ifsync/internal/domain/errors"
)

const invalidMessage = "interface descriptor is invalid"

// Validator decodes descriptors and enforces the element rules. Field level
// rules live in the validate tags of the descriptor types; structural rules
// (which element may appear where) are checked while walking the tree.
type Validator struct {
	validate *validator.Validate
	logger   *logrus.Logger
}

func NewValidator(logger *logrus.Logger) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("xml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// registration only fails for an empty tag or a nil function
	_ = v.RegisterValidation("ifname", func(fl validator.FieldLevel) bool {
		return entities.IsValidInterfaceName(fl.Field().String())
	})
	return &Validator{validate: v, logger: logger}
}

// Parse decodes and validates a descriptor document. Malformed XML fails
// EXMLPARSER; a well-formed document breaking a rule fails EXMLINVALID with
// the line of the offending element.
func (v *Validator) Parse(data []byte) (*entities.Interface, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	iface := &entities.Interface{}
	if err := dec.Decode(iface); err != nil {
		line, _ := dec.InputPos()
		var syntaxErr *xml.SyntaxError
		switch {
		case errors.As(err, &syntaxErr):
			return nil, &domainErrors.DomainError{
				Code:    domainErrors.CodeXMLParser,
				Message: "failed to parse interface descriptor",
				Details: fmt.Sprintf("line %d: %s", syntaxErr.Line, syntaxErr.Msg),
				Cause:   err,
			}
		case errors.Is(err, io.EOF):
			return nil, domainErrors.NewXMLParserError("empty interface descriptor", err)
		}
		return nil, domainErrors.NewXMLInvalidError(invalidMessage, line, err.Error())
	}
	if err := v.Validate(iface); err != nil {
		return nil, err
	}
	return iface, nil
}

// Validate checks a decoded descriptor
func (v *Validator) Validate(iface *entities.Interface) error {
	if iface.Type == "" {
		return invalid(iface.Line, "the toplevel interface needs a type")
	}
	if _, ok := iface.CanonicalName(); !ok {
		return invalid(iface.Line, "the toplevel interface needs a name")
	}
	if err := v.walk(iface, ""); err != nil {
		v.logger.WithError(err).Debug("Interface descriptor rejected")
		return err
	}
	return nil
}

// walk validates iface; role names the element holding it ("" for the
// toplevel interface)
func (v *Validator) walk(iface *entities.Interface, role string) error {
	if err := v.check(iface, iface.Line); err != nil {
		return err
	}
	kind := iface.Kind()

	if role != "" && role != "vlan" {
		if _, ok := iface.CanonicalName(); !ok {
			return invalid(iface.Line, role+" interface needs a name")
		}
	}
	switch role {
	case "bridge":
		if kind == entities.TypeBridge {
			return invalid(iface.Line, "a bridge cannot be a bridge port")
		}
	case "bond":
		if kind != entities.TypeEthernet {
			return invalid(iface.Line, "bond slaves must be ethernet interfaces")
		}
	case "vlan":
		if iface.Name == "" {
			return invalid(iface.Line, "the VLAN parent needs a name")
		}
		return nil
	}

	children := 0
	for _, present := range []bool{iface.Bridge != nil, iface.Bond != nil, iface.VLAN != nil} {
		if present {
			children++
		}
	}
	if children > 1 {
		return invalid(iface.Line, "bridge, bond and vlan elements are mutually exclusive")
	}
	if iface.Type != "" && children == 1 && kind != impliedKind(iface) {
		return invalid(iface.Line, fmt.Sprintf("interface of type %s cannot carry a %s element", kind, impliedKind(iface)))
	}

	if iface.Start != nil {
		if err := v.check(iface.Start, iface.Start.Line); err != nil {
			return err
		}
	}
	if iface.MTU != nil {
		if err := v.check(iface.MTU, iface.MTU.Line); err != nil {
			return err
		}
	}
	if iface.MAC != nil {
		if err := v.check(iface.MAC, iface.MAC.Line); err != nil {
			return err
		}
	}

	families := map[string]bool{}
	for _, proto := range iface.Protocols {
		if err := v.protocol(proto); err != nil {
			return err
		}
		if families[proto.Family] {
			return invalid(proto.Line, "duplicate protocol family "+proto.Family)
		}
		families[proto.Family] = true
	}

	switch {
	case iface.Bridge != nil:
		if err := v.check(iface.Bridge, iface.Bridge.Line); err != nil {
			return err
		}
		for _, port := range iface.Bridge.Interfaces {
			if err := v.walk(port, "bridge"); err != nil {
				return err
			}
		}
	case iface.Bond != nil:
		bond := iface.Bond
		if err := v.check(bond, bond.Line); err != nil {
			return err
		}
		if bond.MIIMon != nil && bond.ARPMon != nil {
			return invalid(bond.Line, "miimon and arpmon are mutually exclusive")
		}
		if bond.MIIMon != nil {
			if err := v.check(bond.MIIMon, bond.MIIMon.Line); err != nil {
				return err
			}
		}
		if bond.ARPMon != nil {
			if err := v.check(bond.ARPMon, bond.ARPMon.Line); err != nil {
				return err
			}
		}
		for _, slave := range bond.Interfaces {
			if err := v.walk(slave, "bond"); err != nil {
				return err
			}
		}
	case iface.VLAN != nil:
		if err := v.check(iface.VLAN, iface.VLAN.Line); err != nil {
			return err
		}
		if iface.VLAN.Interface == nil {
			return invalid(iface.VLAN.Line, "vlan element needs a parent interface")
		}
		if err := v.walk(iface.VLAN.Interface, "vlan"); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) protocol(proto *entities.Protocol) error {
	if err := v.check(proto, proto.Line); err != nil {
		return err
	}
	if proto.Family == entities.FamilyIPv4 && proto.Autoconf != nil {
		return invalid(proto.Line, "autoconf is only valid for ipv6")
	}
	if proto.DHCP != nil {
		if err := v.check(proto.DHCP, proto.DHCP.Line); err != nil {
			return err
		}
	}
	for _, ip := range proto.IPs {
		if err := v.check(ip, ip.Line); err != nil {
			return err
		}
		if isIPv6(ip.Address) != (proto.Family == entities.FamilyIPv6) {
			return invalid(ip.Line, fmt.Sprintf("address %s does not belong to family %s", ip.Address, proto.Family))
		}
		if proto.Family == entities.FamilyIPv4 && ip.Prefix > 32 {
			return invalid(ip.Line, "ipv4 prefix must not exceed 32")
		}
	}
	if proto.Route != nil {
		if err := v.check(proto.Route, proto.Route.Line); err != nil {
			return err
		}
		if isIPv6(proto.Route.Gateway) != (proto.Family == entities.FamilyIPv6) {
			return invalid(proto.Route.Line, fmt.Sprintf("gateway %s does not belong to family %s", proto.Route.Gateway, proto.Family))
		}
	}
	return nil
}

// check runs the tag rules of one element
func (v *Validator) check(element interface{}, line int) error {
	err := v.validate.Struct(element)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domainErrors.NewInternalError("descriptor validation failed", err)
	}
	fe := fieldErrs[0]
	detail := fmt.Sprintf("attribute %q of <%s>", fe.Field(), elementName(fe.StructNamespace()))
	switch fe.Tag() {
	case "required":
		detail += " is required"
	case "oneof":
		detail += fmt.Sprintf(" must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "min", "max":
		detail += fmt.Sprintf(" must satisfy %s=%s", fe.Tag(), fe.Param())
	default:
		detail += fmt.Sprintf(" is not a valid %s: %q", fe.Tag(), fmt.Sprint(fe.Value()))
	}
	return invalid(line, detail)
}

func impliedKind(iface *entities.Interface) string {
	stripped := *iface
	stripped.Type = ""
	return stripped.Kind()
}

func elementName(namespace string) string {
	structName := strings.SplitN(namespace, ".", 2)[0]
	return strings.ToLower(structName)
}

func isIPv6(addr string) bool {
	return strings.Contains(addr, ":")
}

func invalid(line int, detail string) error {
	return domainErrors.NewXMLInvalidError(invalidMessage, line, detail)
}

// LineOf extracts the line recorded in an EXMLINVALID error, or 0
func LineOf(err error) int {
	var domainErr *domainErrors.DomainError
	if !errors.As(err, &domainErr) {
		return 0
	}
	rest, ok := strings.CutPrefix(domainErr.Details, "line ")
	if !ok {
		return 0
	}
	number, _, _ := strings.Cut(rest, ":")
	line, _ := strconv.Atoi(number)
	return line
}
