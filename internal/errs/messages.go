package errs

import "fmt"

// User-facing messages recorded as the out-of-band error of the session and the object list.
const (
	MsgInvalidCredentials = "Ungültige Anmeldedaten"
	MsgLoad               = "Fehler beim Laden der Daten"
	MsgMissingID          = "Keine Objekt-ID angegeben"
	MsgNotFound           = "Objekt nicht gefunden"
	MsgDelete             = "Fehler beim Löschen des Objekts"
	MsgFileDelete         = "Fehler beim Löschen der zugehörigen Dateien. Das Objekt wurde nicht gelöscht."
	MsgFieldOptions       = "Fehler beim Laden der Feldoptionen"
)

// MsgSaveField is the message for a failed single-field update.
func MsgSaveField(field string) string {
	return fmt.Sprintf("Fehler beim Speichern des Feldes %s", field)
}
