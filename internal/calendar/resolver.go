package calendar

import (
	"log"
	"sync"
)

// CalendarCredentials filters credentials down to valid, calendar-capable
// ones. Invalid credentials won't work upstream and are dropped here rather
// than surfacing as fetch errors later.
func CalendarCredentials(creds []Credential) []Credential {
	var out []Credential
	for _, c := range creds {
		if c.IsInvalid {
			continue
		}
		if !c.IsCalendar() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// GoogleCredentials restricts further to the one provider that supports
// timezone metadata on busy intervals.
func GoogleCredentials(creds []Credential) []Credential {
	var out []Credential
	for _, c := range creds {
		if c.IsInvalid || c.Type != GoogleCalendarType {
			continue
		}
		out = append(out, c)
	}
	return out
}

// resolved pairs a credential with its calendar service. A nil service means
// resolution failed and the credential contributes no busy intervals.
type resolved struct {
	cred Credential
	svc  Service
}

// resolveAll maps each credential to a calendar service via the registry,
// all in parallel. Resolution failures degrade the credential to "no
// calendar" and are reported as failures; they never abort the batch.
func resolveAll(reg *Registry, creds []Credential) ([]resolved, []CredentialFailure) {
	services := make([]Service, len(creds))
	errs := make([]error, len(creds))

	var wg sync.WaitGroup
	for i, cred := range creds {
		wg.Add(1)
		go func(i int, cred Credential) {
			defer wg.Done()
			services[i], errs[i] = reg.Resolve(cred)
		}(i, cred)
	}
	wg.Wait()

	out := make([]resolved, 0, len(creds))
	var failures []CredentialFailure
	for i, cred := range creds {
		if errs[i] != nil {
			log.Printf("calendar resolve failed credential_id=%d type=%s err=%v", cred.ID, cred.Type, errs[i])
			failures = append(failures, CredentialFailure{
				CredentialID: cred.ID,
				AppID:        cred.AppID,
				Err:          errs[i],
			})
			continue
		}
		out = append(out, resolved{cred: cred, svc: services[i]})
	}

	return out, failures
}
