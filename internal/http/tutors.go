package http

import (
	"net/http"
	"strings"
)

type tutorSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Subjects        string `json:"subjects"`
	Qualification   string `json:"qualification"`
	ExperienceYears int    `json:"experienceYears"`
	Bio             string `json:"bio"`
	IsVerified      bool   `json:"isVerified"`
}

func (s *Server) handleListTutors(w http.ResponseWriter, r *http.Request) {
	subjectFilter := strings.TrimSpace(r.URL.Query().Get("subject"))

	tutors, err := s.store.ListTutors(r.Context(), subjectFilter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp := make([]tutorSummary, 0, len(tutors))
	for _, tutor := range tutors {
		resp = append(resp, tutorSummary{
			ID:              tutor.Account.ID,
			Name:            tutor.Account.Name,
			Email:           tutor.Account.Email,
			Subjects:        tutor.Profile.Subjects,
			Qualification:   tutor.Profile.Qualification,
			ExperienceYears: tutor.Profile.ExperienceYears,
			Bio:             tutor.Profile.Bio,
			IsVerified:      tutor.Profile.IsVerified,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
