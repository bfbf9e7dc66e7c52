package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/config"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/crypto"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/db"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/model"
	"github.com/shreemayahome-lgtm/tutor-managment-system/internal/repository"
)

const seedPassword = "dev-password"

var subjectPool = []string{"Math", "Physics", "Chemistry", "Biology", "English", "History", "Computer Science"}
var boards = []string{"CBSE", "ICSE", "MP Board", "State Board"}

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	store := repository.NewStore(pool)

	if counts, err := store.CountsByRole(ctx); err != nil {
		log.Fatalf("count check failed: %v", err)
	} else if counts.Tutors+counts.Students+counts.Admins > 0 {
		fmt.Println("Data exists, skipping seed.")
		return
	}

	hash, err := crypto.HashPassword(seedPassword)
	if err != nil {
		log.Fatalf("hash failed: %v", err)
	}

	admin := newAccount("admin@educonnect.local", "Admin User", model.RoleAdmin, hash)
	if err := store.CreateAccount(ctx, admin, nil, nil); err != nil {
		log.Fatalf("admin seed failed: %v", err)
	}

	tutorIDs := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		account := newAccount(gofakeit.Email(), gofakeit.Name(), model.RoleTutor, hash)
		profile := &model.TutorProfile{
			AccountID:       account.ID,
			Subjects:        randomSubjects(),
			Qualification:   "B.Sc " + gofakeit.RandomString(subjectPool),
			ExperienceYears: rand.Intn(15),
			Bio:             gofakeit.Sentence(12),
			IsVerified:      i%2 == 0,
		}
		if err := store.CreateAccount(ctx, account, profile, nil); err != nil {
			log.Fatalf("tutor seed failed: %v", err)
		}
		tutorIDs = append(tutorIDs, account.ID)
	}

	studentIDs := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		account := newAccount(gofakeit.Email(), gofakeit.Name(), model.RoleStudent, hash)
		profile := &model.StudentProfile{
			AccountID:     account.ID,
			Class:         fmt.Sprintf("%dth", 6+rand.Intn(7)),
			School:        gofakeit.Company() + " School",
			ContactNumber: gofakeit.Phone(),
			Board:         gofakeit.RandomString(boards),
		}
		if err := store.CreateAccount(ctx, account, nil, profile); err != nil {
			log.Fatalf("student seed failed: %v", err)
		}
		studentIDs = append(studentIDs, account.ID)
	}

	now := time.Now().UTC()
	for i := 0; i < 40; i++ {
		session := model.SessionRequest{
			ID:          uuid.NewString(),
			TutorID:     gofakeit.RandomString(tutorIDs),
			StudentID:   gofakeit.RandomString(studentIDs),
			Subject:     gofakeit.RandomString(subjectPool),
			ScheduledAt: now.Add(time.Duration(rand.Intn(14*24)) * time.Hour),
			Status:      model.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := store.CreateSessionRequest(ctx, session); err != nil {
			log.Fatalf("session seed failed: %v", err)
		}
		// Roughly half of the requests get answered by the tutor.
		if rand.Intn(2) == 0 {
			next := model.StatusApproved
			if rand.Intn(3) == 0 {
				next = model.StatusRejected
			}
			if _, err := store.TransitionSessionStatus(ctx, session.ID, next); err != nil {
				log.Fatalf("session transition seed failed: %v", err)
			}
		}
	}

	fmt.Printf("Seeded 1 admin, %d tutors, %d students. Password for all: %s\n", len(tutorIDs), len(studentIDs), seedPassword)
}

func newAccount(email, name string, role model.Role, hash string) model.Account {
	now := time.Now().UTC()
	return model.Account{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(email),
		Name:         name,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func randomSubjects() string {
	count := 1 + rand.Intn(3)
	picked := make([]string, 0, count)
	for _, idx := range rand.Perm(len(subjectPool))[:count] {
		picked = append(picked, subjectPool[idx])
	}
	return strings.Join(picked, ", ")
}
