package intake

// Canonical field names collected during a call.
const (
	FieldClientType = "client_type"
	FieldFullName   = "full_name"
	FieldPhone      = "phone"
	FieldEmail      = "email"
	FieldIncident   = "incident"
	FieldDate       = "date"
	FieldLocation   = "location"
	FieldInjuries   = "injuries"
	FieldTreatment  = "treatment"
)

// Record holds the structured intake data for one call. An empty string
// means the field has not been captured yet. Two records exist per call:
// the shadow extractor's advisory copy and the state machine's
// authoritative copy.
type Record struct {
	ClientType string
	FullName   string
	Phone      string
	Email      string
	Incident   string
	Date       string
	Location   string
	Injuries   string
	Treatment  string
}

// Get returns the value stored under a canonical field name.
func (r *Record) Get(field string) string {
	switch field {
	case FieldClientType:
		return r.ClientType
	case FieldFullName:
		return r.FullName
	case FieldPhone:
		return r.Phone
	case FieldEmail:
		return r.Email
	case FieldIncident:
		return r.Incident
	case FieldDate:
		return r.Date
	case FieldLocation:
		return r.Location
	case FieldInjuries:
		return r.Injuries
	case FieldTreatment:
		return r.Treatment
	}
	return ""
}

// Set stores a value under a canonical field name. Unknown names are ignored.
func (r *Record) Set(field, value string) {
	switch field {
	case FieldClientType:
		r.ClientType = value
	case FieldFullName:
		r.FullName = value
	case FieldPhone:
		r.Phone = value
	case FieldEmail:
		r.Email = value
	case FieldIncident:
		r.Incident = value
	case FieldDate:
		r.Date = value
	case FieldLocation:
		r.Location = value
	case FieldInjuries:
		r.Injuries = value
	case FieldTreatment:
		r.Treatment = value
	}
}

// Complete reports whether enough fields are present to hand the call off:
// client type, name, at least one contact channel, and the incident basics.
func (r *Record) Complete() bool {
	return r.ClientType != "" && r.FullName != "" &&
		(r.Phone != "" || r.Email != "") &&
		r.Incident != "" && r.Date != "" && r.Location != ""
}

// Snapshot returns the record as a map for logging. Unset fields are omitted.
func (r *Record) Snapshot() map[string]string {
	m := make(map[string]string, 8)
	for _, f := range []string{
		FieldClientType, FieldFullName, FieldPhone, FieldEmail,
		FieldIncident, FieldDate, FieldLocation, FieldInjuries, FieldTreatment,
	} {
		if v := r.Get(f); v != "" {
			m[f] = v
		}
	}
	return m
}
