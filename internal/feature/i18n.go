package feature

import (
	"errors"
	"strings"

	"github.com/gosuda/backoffice/internal/domain"
	"github.com/gosuda/backoffice/internal/upstream"
)

type Locale string

const (
	LocaleES Locale = "es"
	LocaleEN Locale = "en"
)

// ParseLocale maps "es", "es-MX", "en_US" and similar to a supported locale,
// defaulting to Spanish.
func ParseLocale(raw string) Locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return LocaleEN
	}
	return LocaleES
}

// MessageKey names a fallback message.
type MessageKey string

const (
	MsgList          MessageKey = "list"
	MsgDetail        MessageKey = "detail"
	MsgCreate        MessageKey = "create"
	MsgUpdate        MessageKey = "update"
	MsgDelete        MessageKey = "delete"
	MsgUpload        MessageKey = "upload"
	MsgRoles         MessageKey = "roles"
	MsgProfile       MessageKey = "profile"
	MsgLogin         MessageKey = "login"
	MsgSession       MessageKey = "session"
	MsgPublicProfile MessageKey = "public_profile"
	MsgSurvey        MessageKey = "survey"
	MsgNotFound      MessageKey = "not_found"
	MsgCreated       MessageKey = "created"
	MsgUpdated       MessageKey = "updated"
	MsgDeleted       MessageKey = "deleted"
	MsgUploaded      MessageKey = "uploaded"
)

var catalog = map[Locale]map[MessageKey]string{ //nolint:gochecknoglobals // static translations
	LocaleES: {
		MsgList:          "No se pudo cargar la lista",
		MsgDetail:        "No se pudo cargar el registro",
		MsgCreate:        "No se pudo crear el registro",
		MsgUpdate:        "No se pudo actualizar el registro",
		MsgDelete:        "No se pudo eliminar el registro",
		MsgUpload:        "No se pudieron subir los archivos",
		MsgRoles:         "No se pudieron cargar los roles",
		MsgProfile:       "No se pudo cargar el perfil",
		MsgLogin:         "Correo o contraseña incorrectos",
		MsgSession:       "Tu sesión expiró, inicia sesión de nuevo",
		MsgPublicProfile: "No se pudo guardar la información",
		MsgSurvey:        "No se pudo enviar la encuesta",
		MsgNotFound:      "El enlace no es válido o ya expiró",
		MsgCreated:       "Registro creado",
		MsgUpdated:       "Registro actualizado",
		MsgDeleted:       "Registro eliminado",
		MsgUploaded:      "Archivos subidos",
	},
	LocaleEN: {
		MsgList:          "Could not load the list",
		MsgDetail:        "Could not load the record",
		MsgCreate:        "Could not create the record",
		MsgUpdate:        "Could not update the record",
		MsgDelete:        "Could not delete the record",
		MsgUpload:        "Could not upload the files",
		MsgRoles:         "Could not load roles",
		MsgProfile:       "Could not load the profile",
		MsgLogin:         "Wrong email or password",
		MsgSession:       "Your session expired, please sign in again",
		MsgPublicProfile: "Could not save the information",
		MsgSurvey:        "Could not submit the survey",
		MsgNotFound:      "The link is invalid or has expired",
		MsgCreated:       "Record created",
		MsgUpdated:       "Record updated",
		MsgDeleted:       "Record deleted",
		MsgUploaded:      "Files uploaded",
	},
}

// Messages resolves user-facing strings for one locale.
type Messages struct {
	locale Locale
}

func NewMessages(locale Locale) *Messages {
	if _, ok := catalog[locale]; !ok {
		locale = LocaleES
	}
	return &Messages{locale: locale}
}

func (m *Messages) Locale() Locale {
	return m.locale
}

// Text returns the translation of key, falling back to Spanish.
func (m *Messages) Text(key MessageKey) string {
	if s, ok := catalog[m.locale][key]; ok {
		return s
	}
	return catalog[LocaleES][key]
}

// Describe turns err into the string shown to the user: the backend's own
// message when it sent one, otherwise the localized fallback for key.
func (m *Messages) Describe(err error, key MessageKey) string {
	if msg, ok := upstream.ServerMessage(err); ok {
		return msg
	}
	if errors.Is(err, domain.ErrMissingAuth) {
		return m.Text(MsgSession)
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return m.Text(key)
}

// Success returns msg, or the localized default for key when the backend
// sent none.
func (m *Messages) Success(msg string, key MessageKey) string {
	if msg != "" {
		return msg
	}
	return m.Text(key)
}
