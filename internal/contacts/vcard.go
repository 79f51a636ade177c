// Package contacts imports caregiver contact lists from vCard files
// exported by a phone or address book.
package contacts

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-vcard"

	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/validate"
)

// ImportVCards parses a vCard stream into caregivers. Cards without a
// formatted name are skipped; phone numbers that fail validation are
// dropped but the contact is kept. The first imported contact is
// flagged primary unless markPrimary is empty and none match.
func ImportVCards(r io.Reader, markPrimary string) ([]model.Caregiver, error) {
	dec := vcard.NewDecoder(r)

	var caregivers []model.Caregiver
	for {
		card, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode vcard: %w", err)
		}

		name := card.PreferredValue(vcard.FieldFormattedName)
		if name == "" {
			continue
		}

		cg := model.Caregiver{
			ID:        model.NewID(),
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}
		if phone := card.PreferredValue(vcard.FieldTelephone); phone != "" && validate.Phone(phone) {
			cg.Phone = phone
		}
		if related := card.PreferredValue(vcard.FieldRelated); related != "" {
			cg.Relation = related
		}
		caregivers = append(caregivers, cg)
	}

	if len(caregivers) == 0 {
		return nil, fmt.Errorf("no usable contacts in vcard input")
	}

	markCaregiverPrimary(caregivers, markPrimary)
	return caregivers, nil
}

// markCaregiverPrimary flags the contact matching name, or the first
// one when no name is given or nothing matches.
func markCaregiverPrimary(caregivers []model.Caregiver, name string) {
	if name != "" {
		needle := strings.ToLower(name)
		for i := range caregivers {
			if strings.Contains(strings.ToLower(caregivers[i].Name), needle) {
				caregivers[i].Primary = true
				return
			}
		}
	}
	caregivers[0].Primary = true
}
