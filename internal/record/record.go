// Package record defines the identity-card record captured by the scanner,
// its static field-descriptor table, and the pure validation predicates that
// gate archival. No I/O lives here; every function is a pure computation over
// the Record shape so the workflow state machine stays unit-testable.
package record

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/arsipdigital/arsipktp/internal/platform/apperr"
	"github.com/arsipdigital/arsipktp/internal/platform/constants"
	"github.com/arsipdigital/arsipktp/internal/platform/validate"
)

// Record is one identity-card data capture. The sixteen identity fields are
// required for archival; the provenance fields are optional and filled by the
// workflow at submit time.
//
// JSON tags match the spreadsheet archive wire format (camelCase).
type Record struct {
	NIK              string `json:"nik"`
	Nama             string `json:"nama"`
	TempatLahir      string `json:"tempatLahir"`
	TanggalLahir     string `json:"tanggalLahir"`
	JenisKelamin     string `json:"jenisKelamin"`
	Alamat           string `json:"alamat"`
	RT               string `json:"rt"`
	RW               string `json:"rw"`
	KelDesa          string `json:"kelDesa"`
	Kecamatan        string `json:"kecamatan"`
	KotaKabupaten    string `json:"kotaKabupaten"`
	Agama            string `json:"agama"`
	StatusPerkawinan string `json:"statusPerkawinan"`
	Pekerjaan        string `json:"pekerjaan"`
	Kewarganegaraan  string `json:"kewarganegaraan"`
	BerlakuHingga    string `json:"berlakuHingga"`

	// Provenance, absent unless the capture session had them.
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	WaktuInput string   `json:"waktuInput,omitempty"`
	LinkFoto   string   `json:"linkFoto,omitempty"`
}

// Kind classifies a field for normalization and form rendering.
type Kind string

const (
	// KindText fields are uppercased on every edit.
	KindText Kind = "text"
	// KindDigits fields are stripped of non-digits and capped at NIKLength.
	KindDigits Kind = "digits"
	// KindDate fields pass through edits unchanged.
	KindDate Kind = "date"
	// KindEnum fields are uppercased and constrained to Options.
	KindEnum Kind = "enum"
)

// Field describes one identity field: its wire name, display label, kind, and
// (for enums) the allowed options. The table drives normalization, validation,
// and the form-schema endpoint, so the field contract lives in exactly one place.
type Field struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Kind    Kind     `json:"kind"`
	Options []string `json:"options,omitempty"`
}

// Fields is the ordered descriptor table for the sixteen required fields.
var Fields = []Field{
	{Name: "nik", Label: "NIK (16 Digit)", Kind: KindDigits},
	{Name: "nama", Label: "Nama Lengkap", Kind: KindText},
	{Name: "tempatLahir", Label: "Tempat Lahir", Kind: KindText},
	{Name: "tanggalLahir", Label: "Tanggal Lahir", Kind: KindDate},
	{Name: "jenisKelamin", Label: "Jenis Kelamin", Kind: KindEnum, Options: []string{"LAKI-LAKI", "PEREMPUAN"}},
	{Name: "alamat", Label: "Alamat", Kind: KindText},
	{Name: "rt", Label: "RT", Kind: KindText},
	{Name: "rw", Label: "RW", Kind: KindText},
	{Name: "kelDesa", Label: "Kel/Desa", Kind: KindText},
	{Name: "kecamatan", Label: "Kecamatan", Kind: KindText},
	{Name: "kotaKabupaten", Label: "Kota/Kabupaten", Kind: KindText},
	{Name: "agama", Label: "Agama", Kind: KindText},
	{Name: "statusPerkawinan", Label: "Status Perkawinan", Kind: KindText},
	{Name: "pekerjaan", Label: "Pekerjaan", Kind: KindText},
	{Name: "kewarganegaraan", Label: "Kewarganegaraan", Kind: KindText},
	{Name: "berlakuHingga", Label: "Berlaku Hingga", Kind: KindText},
}

// FieldByName looks up a descriptor in the table.
func FieldByName(name string) (Field, bool) {
	for _, field := range Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Manual returns the empty record used for manual entry, with the nationality
// and validity fields pre-filled to their near-universal defaults.
func Manual() Record {
	return Record{
		Kewarganegaraan: constants.DefaultNationality,
		BerlakuHingga:   constants.DefaultValidity,
	}
}

// # Field Access

// Get returns the value of the named identity field.
func (r Record) Get(name string) (string, bool) {
	field, ok := r.fieldPtr(&r, name)
	if !ok {
		return "", false
	}
	return *field, true
}

// WithField returns a copy of the record with the named identity field set to
// the normalized value. The receiver is never mutated. The second return is
// false when the name does not appear in the descriptor table.
func (r Record) WithField(name, raw string) (Record, bool) {
	out := r
	field, ok := r.fieldPtr(&out, name)
	if !ok {
		return r, false
	}
	*field = Normalize(name, raw)
	return out, true
}

// fieldPtr maps a wire name onto the corresponding struct field of target.
func (Record) fieldPtr(target *Record, name string) (*string, bool) {
	switch name {
	case "nik":
		return &target.NIK, true
	case "nama":
		return &target.Nama, true
	case "tempatLahir":
		return &target.TempatLahir, true
	case "tanggalLahir":
		return &target.TanggalLahir, true
	case "jenisKelamin":
		return &target.JenisKelamin, true
	case "alamat":
		return &target.Alamat, true
	case "rt":
		return &target.RT, true
	case "rw":
		return &target.RW, true
	case "kelDesa":
		return &target.KelDesa, true
	case "kecamatan":
		return &target.Kecamatan, true
	case "kotaKabupaten":
		return &target.KotaKabupaten, true
	case "agama":
		return &target.Agama, true
	case "statusPerkawinan":
		return &target.StatusPerkawinan, true
	case "pekerjaan":
		return &target.Pekerjaan, true
	case "kewarganegaraan":
		return &target.Kewarganegaraan, true
	case "berlakuHingga":
		return &target.BerlakuHingga, true
	}
	return nil, false
}

// # Normalization

// Normalize applies the per-kind edit rule for the named field: digit fields
// are stripped of non-digits and capped at sixteen characters, date fields
// pass through unchanged, and everything else is uppercased.
//
// Unknown names fall back to the text rule, which matches how the original
// form treated ad-hoc inputs.
func Normalize(name, raw string) string {
	field, ok := FieldByName(name)
	if !ok {
		field = Field{Kind: KindText}
	}

	switch field.Kind {
	case KindDigits:
		return normalizeDigits(raw)
	case KindDate:
		return raw
	default:
		return upper(raw)
	}
}

// NormalizeAll applies Normalize to every identity field, used once on the
// extractor's candidate record before it enters the success state.
func NormalizeAll(r Record) Record {
	out := r
	for _, field := range Fields {
		value, _ := r.Get(field.Name)
		out, _ = out.WithField(field.Name, value)
	}
	return out
}

// normalizeDigits strips non-digit runes and caps the result at NIKLength.
func normalizeDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == constants.NIKLength {
			break
		}
	}
	return b.String()
}

// upper uppercases with Indonesian casing rules. strings.ToUpper would do for
// ASCII, but extracted names occasionally carry accented characters.
func upper(raw string) string {
	return cases.Upper(language.Indonesian).String(raw)
}

// # Validation Predicates

// NIKValid reports whether the digit-stripped NIK has exactly sixteen digits.
func (r Record) NIKValid() bool {
	digits := strings.Map(func(c rune) rune {
		if c < '0' || c > '9' {
			return -1
		}
		return c
	}, r.NIK)
	return len(digits) == constants.NIKLength
}

// Complete reports whether every one of the sixteen required identity fields
// is non-empty after trimming whitespace.
func (r Record) Complete() bool {
	for _, field := range Fields {
		value, _ := r.Get(field.Name)
		if strings.TrimSpace(value) == "" {
			return false
		}
	}
	return true
}

// Duplicate reports whether some archived record carries the same non-empty
// NIK. An empty NIK is never a duplicate, regardless of history contents.
func (r Record) Duplicate(history []Record) bool {
	if r.NIK == "" {
		return false
	}
	for _, archived := range history {
		if archived.NIK == r.NIK {
			return true
		}
	}
	return false
}

// SubmitBlockers returns the inline reasons the record cannot be archived yet.
// An empty slice means submission is permitted. The duplicate check is only
// meaningful once the NIK itself is valid, mirroring the form's badge logic.
func (r Record) SubmitBlockers(history []Record) []apperr.FieldError {
	v := &validate.Validator{}

	v.Custom("nik", !r.NIKValid(), "NIK must be exactly 16 digits")

	for _, field := range Fields {
		value, _ := r.Get(field.Name)
		v.Required(field.Name, value)
	}

	v.Custom("nik", r.NIKValid() && r.Duplicate(history), "NIK is already archived")

	return v.Errors()
}
