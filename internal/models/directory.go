package models

import "strings"

type Doctor struct {
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// Label is what the doctor dropdown shows.
func (d Doctor) Label() string {
	return d.Name + " (" + d.Specialty + ")"
}

var hospitalDoctors = []Doctor{
	{Name: "Dr. Jayanta Boroowa", Specialty: "Medical Director"},
	{Name: "Dr. Pratibha Chauhan Paul", Specialty: "Oculoplasty & PHACO"},
	{Name: "Dr. Nilutpal Borah", Specialty: "Retina & Diabetic Eye"},
	{Name: "Dr. Nilakshi Baruah", Specialty: "Cornea & Refractive"},
	{Name: "Dr. Sanjay Kr Buragohain", Specialty: "Neuro-Ophth & Glaucoma"},
}

var localPlaces = []string{
	"Nagaon Town", "Haibargaon", "Raha", "Kampur", "Dhing", "Rupahi", "Samaguri",
	"Kaliabor", "Jakhalabandha", "Hojai", "Lanka", "Doboka", "Lumding", "Batadrava",
	"Juria", "Kathiatoli", "Puranigudam", "Uriumgaon", "Nonoi", "Barhampur", "Chapanala",
}

// Doctors returns a copy of the doctor directory.
func Doctors() []Doctor {
	out := make([]Doctor, len(hospitalDoctors))
	copy(out, hospitalDoctors)
	return out
}

// Places returns a copy of the local place names.
func Places() []string {
	out := make([]string, len(localPlaces))
	copy(out, localPlaces)
	return out
}

// FindDoctor looks a doctor up by display name.
func FindDoctor(name string) (Doctor, bool) {
	for _, d := range hospitalDoctors {
		if d.Name == name {
			return d, true
		}
	}
	return Doctor{}, false
}

// DistrictForPincode maps Nagaon postal codes (782xxx) to the district name.
func DistrictForPincode(pincode string) (string, bool) {
	if strings.HasPrefix(strings.TrimSpace(pincode), "782") {
		return "Nagaon", true
	}
	return "", false
}
