// Package validation registers Indian tax and banking identifier rules on
// go-playground/validator, both for gin request binding and standalone use.
package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const gstinCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	gstinPattern  = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	panPattern    = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	ifscPattern   = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	vpaPattern    = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z][a-zA-Z0-9]{1,63}$`)
	mobilePattern = regexp.MustCompile(`^(\+91|91|0)?[6-9][0-9]{9}$`)
)

var (
	ginOnce sync.Once
	ginErr  error

	stdOnce  sync.Once
	validate *validator.Validate
	stdErr   error
)

// New returns a validator with the custom tags registered.
func New() (*validator.Validate, error) {
	v := validator.New()
	if err := Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Register adds gstin, pan, ifsc, upi_vpa and in_mobile tags to v and makes
// field errors report JSON (or form) names.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(fieldName)
	rules := map[string]func(string) bool{
		"gstin":     ValidGSTIN,
		"pan":       ValidPAN,
		"ifsc":      ValidIFSC,
		"upi_vpa":   ValidVPA,
		"in_mobile": ValidMobile,
	}
	for tag, fn := range rules {
		check := fn
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return check(fl.Field().String())
		}); err != nil {
			return err
		}
	}
	return nil
}

func fieldName(field reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

// RegisterGinBinding installs the custom tags on gin's validator so
// `binding:"gstin"` works in request structs. Safe to call more than once.
func RegisterGinBinding() error {
	ginOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		ginErr = Register(v)
	})
	return ginErr
}

// Struct validates `validate` tags on s.
func Struct(s any) error {
	stdOnce.Do(func() {
		validate, stdErr = New()
	})
	if stdErr != nil {
		return stdErr
	}
	return validate.Struct(s)
}

// ValidGSTIN checks the GSTIN layout and its mod-36 check character.
func ValidGSTIN(value string) bool {
	value = strings.ToUpper(strings.TrimSpace(value))
	if !gstinPattern.MatchString(value) {
		return false
	}
	return value[14] == gstinCheckChar(value[:14])
}

func gstinCheckChar(body string) byte {
	const mod = len(gstinCharset)
	factor := 2
	sum := 0
	for i := len(body) - 1; i >= 0; i-- {
		addend := factor * strings.IndexByte(gstinCharset, body[i])
		if factor == 2 {
			factor = 1
		} else {
			factor = 2
		}
		sum += addend/mod + addend%mod
	}
	return gstinCharset[(mod-sum%mod)%mod]
}

// StateCode returns the two-digit state code of a GSTIN.
func StateCode(gstin string) string {
	gstin = strings.TrimSpace(gstin)
	if len(gstin) < 2 {
		return ""
	}
	return gstin[:2]
}

func ValidPAN(value string) bool {
	return panPattern.MatchString(strings.ToUpper(strings.TrimSpace(value)))
}

func ValidIFSC(value string) bool {
	return ifscPattern.MatchString(strings.ToUpper(strings.TrimSpace(value)))
}

func ValidVPA(value string) bool {
	return vpaPattern.MatchString(strings.TrimSpace(value))
}

func ValidMobile(value string) bool {
	value = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(value))
	return mobilePattern.MatchString(value)
}
