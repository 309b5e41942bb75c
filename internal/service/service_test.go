package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/fitfinder/internal/events"
	"github.com/mmeshcher/fitfinder/internal/model"
	"github.com/mmeshcher/fitfinder/internal/repository"
)

type stubRepo struct {
	createUserID  string
	createUserErr error
	createdLogin  string
	createdHash   []byte

	users    map[string]*model.User
	profiles map[string]*model.Profile
	gyms     map[string]*model.Gym
	ratings  map[string][]model.RatingSubmission
	comments map[string][]model.Comment

	createGymErr error
	appendErr    error
	nextID       int

	// afterOwnerLookup вызывается после чтения академии владельца.
	afterOwnerLookup func()
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:    make(map[string]*model.User),
		profiles: make(map[string]*model.Profile),
		gyms:     make(map[string]*model.Gym),
		ratings:  make(map[string][]model.RatingSubmission),
		comments: make(map[string][]model.Comment),
	}
}

func (s *stubRepo) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, login string, passwordHash []byte) (string, error) {
	s.createdLogin = login
	s.createdHash = passwordHash
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	for _, u := range s.users {
		if u.Login == login {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (s *stubRepo) UpsertProfile(ctx context.Context, p model.Profile) (*model.Profile, error) {
	s.profiles[p.ID] = &p
	return &p, nil
}

func (s *stubRepo) CreateGym(ctx context.Context, g model.Gym) (*model.Gym, error) {
	if s.createGymErr != nil {
		return nil, s.createGymErr
	}
	g.ID = s.id("gym")
	g.UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.gyms[g.ID] = &g
	out := g
	return &out, nil
}

func (s *stubRepo) UpdateGym(ctx context.Context, g model.Gym) (*model.Gym, error) {
	cur, ok := s.gyms[g.ID]
	if !ok {
		return nil, repository.ErrGymNotFound
	}
	if !cur.UpdatedAt.Equal(g.UpdatedAt) {
		return nil, repository.ErrGymModified
	}
	g.CNPJ = cur.CNPJ
	g.UpdatedAt = cur.UpdatedAt.Add(time.Second)
	s.gyms[g.ID] = &g
	out := g
	return &out, nil
}

func (s *stubRepo) AppendGymImage(ctx context.Context, ownerID, url string) (*model.Gym, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	for _, g := range s.gyms {
		if g.OwnerID != ownerID {
			continue
		}
		if len(g.Images) >= model.MaxGymImages {
			return nil, repository.ErrGymImageLimit
		}
		g.Images = append(g.Images, url)
		if g.MainImage == nil {
			g.MainImage = &url
		}
		g.UpdatedAt = g.UpdatedAt.Add(time.Second)
		out := *g
		out.Images = append([]string(nil), g.Images...)
		return &out, nil
	}
	return nil, repository.ErrGymNotFound
}

func (s *stubRepo) GetGym(ctx context.Context, id string) (*model.Gym, error) {
	if g, ok := s.gyms[id]; ok {
		out := *g
		return &out, nil
	}
	return nil, repository.ErrGymNotFound
}

func (s *stubRepo) GetGymByOwner(ctx context.Context, ownerID string) (*model.Gym, error) {
	for _, g := range s.gyms {
		if g.OwnerID == ownerID {
			out := *g
			out.Images = append([]string(nil), g.Images...)
			if s.afterOwnerLookup != nil {
				hook := s.afterOwnerLookup
				s.afterOwnerLookup = nil
				hook()
			}
			return &out, nil
		}
	}
	return nil, repository.ErrGymNotFound
}

func (s *stubRepo) ListGyms(ctx context.Context, f model.GymFilter) ([]model.Gym, error) {
	out := make([]model.Gym, 0)
	for _, g := range s.gyms {
		if f.State != "" && !strings.EqualFold(g.Location.State, f.State) {
			continue
		}
		// город сравнивается точно, как lower() в базе с collation C для букв с акцентами
		if f.City != "" && g.Location.City != f.City {
			continue
		}
		out = append(out, *g)
	}
	return out, nil
}

func (s *stubRepo) CreateRating(ctx context.Context, r model.RatingSubmission) (*model.RatingSubmission, error) {
	r.ID = s.id("rating")
	s.ratings[r.GymID] = append(s.ratings[r.GymID], r)
	return &r, nil
}

func (s *stubRepo) ListRatingsByGym(ctx context.Context, gymID string) ([]model.RatingSubmission, error) {
	return s.ratings[gymID], nil
}

func (s *stubRepo) ListRatingsByGyms(ctx context.Context, gymIDs []string) (map[string][]model.RatingSubmission, error) {
	out := make(map[string][]model.RatingSubmission)
	for _, id := range gymIDs {
		out[id] = s.ratings[id]
	}
	return out, nil
}

func (s *stubRepo) CreateComment(ctx context.Context, c model.Comment) (*model.Comment, error) {
	c.ID = s.id("comment")
	s.comments[c.GymID] = append([]model.Comment{c}, s.comments[c.GymID]...)
	return &c, nil
}

func (s *stubRepo) ListCommentsByGym(ctx context.Context, gymID string) ([]model.Comment, error) {
	return s.comments[gymID], nil
}

type stubBlobs struct {
	folder      string
	filename    string
	contentType string
	size        int64
	err         error
	calls       int
	deleted     []string

	// onUpload вызывается во время загрузки, до возврата URL.
	onUpload func()
}

func (b *stubBlobs) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.calls++
	url := fmt.Sprintf("https://cdn/%s/%d-%s", folder, b.calls, filename)
	if b.onUpload != nil {
		hook := b.onUpload
		b.onUpload = nil
		hook()
	}
	b.folder, b.filename, b.contentType, b.size = folder, filename, contentType, size
	return url, nil
}

func (b *stubBlobs) Delete(ctx context.Context, url string) error {
	b.deleted = append(b.deleted, url)
	return nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func validGymInput() model.GymInput {
	return model.GymInput{
		CNPJ:             "11.222.333/0001-81",
		Name:             "Academia Central",
		Description:      "Academia completa com musculação e aulas coletivas.",
		ShortDescription: "Musculação e aulas",
		State:            "são paulo",
		City:             "Campinas",
		Address:          "Rua das Flores, 100",
		Phone:            "(19) 99999-0000",
		Email:            "contato@central.com.br",
		OpeningHours:     "Seg-Sex 6h-23h",
		Amenities:        []string{"Estacionamento", " ", "Vestiário"},
		Pricing:          model.Pricing{Daily: 25, Monthly: 120, Quarterly: 330, Yearly: 1200},
	}
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := newStubRepo()
	repo.createUserErr = repository.ErrUserExists
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.RegisterUser(context.Background(), "user@example.com", "secret1")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterUser_HashesPassword(t *testing.T) {
	repo := newStubRepo()
	repo.createUserID = "u1"
	svc := NewService(repo, nil, nil, nil)

	id, err := svc.RegisterUser(context.Background(), " user@example.com ", "secret1")
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}
	if id != "u1" {
		t.Fatalf("id = %q, want u1", id)
	}
	if repo.createdLogin != "user@example.com" {
		t.Fatalf("login was not trimmed: %q", repo.createdLogin)
	}
	if err := bcrypt.CompareHashAndPassword(repo.createdHash, []byte("secret1")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestRegisterUser_Validation(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil, nil)

	_, err := svc.RegisterUser(context.Background(), "not-an-email", "123")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["login"]; !ok {
		t.Fatalf("login error missing: %+v", verr.Fields)
	}
	if _, ok := verr.Fields["password"]; !ok {
		t.Fatalf("password error missing: %+v", verr.Fields)
	}
}

func TestAuthenticateUser(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	repo := newStubRepo()
	repo.users["u1"] = &model.User{ID: "u1", Login: "user@example.com", PasswordHash: hashed}
	svc := NewService(repo, nil, nil, nil)

	id, err := svc.AuthenticateUser(context.Background(), "user@example.com", "correct")
	if err != nil || id != "u1" {
		t.Fatalf("AuthenticateUser = %q, %v", id, err)
	}

	if _, err := svc.AuthenticateUser(context.Background(), "user@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.AuthenticateUser(context.Background(), "nobody@example.com", "correct"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown login, got %v", err)
	}
}

func TestProfile(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil, nil)

	p, err := svc.GetProfile(context.Background(), "u1")
	if err != nil || p.ID != "u1" || p.Username != nil {
		t.Fatalf("empty profile expected, got %+v, %v", p, err)
	}

	name := "  Maria  "
	empty := ""
	p, err = svc.UpdateProfile(context.Background(), "u1", &name, &empty)
	if err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}
	if p.Username == nil || *p.Username != "Maria" || p.AvatarURL != nil {
		t.Fatalf("unexpected profile: %+v", p)
	}

	bad := "not a url"
	if _, err := svc.UpdateProfile(context.Background(), "u1", nil, &bad); err == nil {
		t.Fatalf("expected error for invalid avatar url")
	}
}

func TestResolveAttribution(t *testing.T) {
	repo := newStubRepo()
	repo.users["u1"] = &model.User{ID: "u1", Login: "maria@example.com"}
	repo.users["u2"] = &model.User{ID: "u2", Login: "joao@example.com"}
	username := "Maria"
	repo.profiles["u1"] = &model.Profile{ID: "u1", Username: &username}
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	a, err := svc.ResolveAttribution(ctx, "u1", "ignored")
	if err != nil || a.UserID == nil || *a.UserID != "u1" || a.DisplayName != "Maria" {
		t.Fatalf("signed-in with profile: %+v, %v", a, err)
	}

	a, err = svc.ResolveAttribution(ctx, "u2", "")
	if err != nil || a.DisplayName != "joao@example.com" {
		t.Fatalf("signed-in without profile: %+v, %v", a, err)
	}

	a, err = svc.ResolveAttribution(ctx, "", "  Visitante ")
	if err != nil || a.UserID != nil || a.DisplayName != "Visitante" {
		t.Fatalf("anonymous: %+v, %v", a, err)
	}

	var verr *ValidationError
	if _, err := svc.ResolveAttribution(ctx, "", "   "); !errors.As(err, &verr) {
		t.Fatalf("anonymous without name must fail validation, got %v", err)
	}
}

func TestRegisterGym(t *testing.T) {
	repo := newStubRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, pub, nil)

	g, err := svc.RegisterGym(context.Background(), "owner", validGymInput())
	if err != nil {
		t.Fatalf("RegisterGym error: %v", err)
	}
	if g.CNPJ != "11222333000181" {
		t.Fatalf("CNPJ = %q, want digits only", g.CNPJ)
	}
	if g.Status != model.GymStatusPending {
		t.Fatalf("status = %q, want pending", g.Status)
	}
	if g.Location.State != "São Paulo" {
		t.Fatalf("state = %q, want canonical name", g.Location.State)
	}
	if len(g.Amenities) != 2 {
		t.Fatalf("blank amenities must be dropped: %v", g.Amenities)
	}
	if g.MainImage != nil || len(g.Images) != 0 {
		t.Fatalf("new gym must have no images: %+v", g)
	}

	if len(pub.events) != 1 || pub.events[0].Kind != events.KindGymCreated || pub.events[0].GymID != g.ID {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
	if pub.events[0].State != "São Paulo" || pub.events[0].City != "Campinas" {
		t.Fatalf("event location: %+v", pub.events[0])
	}
}

func TestRegisterGym_CatalogueSpelling(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	in := validGymInput()
	in.State = "SÃO PAULO"
	in.City = " são bernardo do campo "
	g, err := svc.RegisterGym(ctx, "owner", in)
	if err != nil {
		t.Fatalf("RegisterGym error: %v", err)
	}
	if g.Location.State != "São Paulo" || g.Location.City != "São Bernardo do Campo" {
		t.Fatalf("location = %+v", g.Location)
	}

	found, err := svc.SearchGyms(ctx, model.GymFilter{State: "sp", City: "SÃO BERNARDO DO CAMPO"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].ID != g.ID {
		t.Fatalf("search by city in other case = %+v", found)
	}
}

func TestRegisterGym_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*model.GymInput)
		field  string
	}{
		{"invalid cnpj", func(in *model.GymInput) { in.CNPJ = "11.222.333/0001-82" }, "cnpj"},
		{"short name", func(in *model.GymInput) { in.Name = "AB" }, "name"},
		{"short description", func(in *model.GymInput) { in.Description = "curta" }, "description"},
		{"unknown state", func(in *model.GymInput) { in.State = "Atlantis" }, "state"},
		{"city from other state", func(in *model.GymInput) { in.City = "Curitiba" }, "city"},
		{"no amenities", func(in *model.GymInput) { in.Amenities = []string{" "} }, "amenities"},
		{"negative price", func(in *model.GymInput) { in.Pricing.Monthly = -1 }, "pricing.monthly"},
		{"bad email", func(in *model.GymInput) { in.Email = "nope" }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newStubRepo()
			svc := NewService(repo, nil, nil, nil)

			in := validGymInput()
			tt.modify(&in)

			_, err := svc.RegisterGym(context.Background(), "owner", in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Fatalf("field %q missing in %+v", tt.field, verr.Fields)
			}
			if len(repo.gyms) != 0 {
				t.Fatalf("invalid gym must not be stored")
			}
		})
	}
}

func TestRegisterGym_PropagatesConflicts(t *testing.T) {
	repo := newStubRepo()
	repo.createGymErr = repository.ErrCNPJTaken
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, pub, nil)

	_, err := svc.RegisterGym(context.Background(), "owner", validGymInput())
	if !errors.Is(err, repository.ErrCNPJTaken) {
		t.Fatalf("expected ErrCNPJTaken, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("no event expected on failure")
	}
}

func TestUpdateGym(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	g, err := svc.RegisterGym(ctx, "owner", validGymInput())
	if err != nil {
		t.Fatal(err)
	}
	repo.gyms[g.ID].Images = []string{"a", "b", "c"}

	in := validGymInput()
	in.Name = "Academia Central Plus"
	in.Images = []string{"c", "a", "c"}

	upd, err := svc.UpdateGym(ctx, "owner", in)
	if err != nil {
		t.Fatalf("UpdateGym error: %v", err)
	}
	if upd.Name != "Academia Central Plus" {
		t.Fatalf("name not updated: %q", upd.Name)
	}
	if strings.Join(upd.Images, ",") != "c,a" || upd.MainImage == nil || *upd.MainImage != "c" {
		t.Fatalf("images = %v main = %v", upd.Images, upd.MainImage)
	}

	in.Images = []string{"x"}
	var verr *ValidationError
	if _, err := svc.UpdateGym(ctx, "owner", in); !errors.As(err, &verr) {
		t.Fatalf("unknown image must be rejected, got %v", err)
	}

	in.Images = nil
	in.CNPJ = "11.444.777/0001-61"
	if _, err := svc.UpdateGym(ctx, "owner", in); !errors.As(err, &verr) || verr.Fields["cnpj"] == "" {
		t.Fatalf("cnpj change must be rejected, got %v", err)
	}

	if _, err := svc.UpdateGym(ctx, "stranger", validGymInput()); !errors.Is(err, repository.ErrGymNotFound) {
		t.Fatalf("expected ErrGymNotFound for owner without gym, got %v", err)
	}
}

var pngHeader = []byte("\x89PNG\x0D\x0A\x1A\x0A\x00\x00\x00\x0DIHDR")

func TestAddGymImage(t *testing.T) {
	repo := newStubRepo()
	blobs := &stubBlobs{}
	svc := NewService(repo, blobs, nil, nil)
	ctx := context.Background()

	g, err := svc.RegisterGym(ctx, "owner", validGymInput())
	if err != nil {
		t.Fatal(err)
	}

	upd, err := svc.AddGymImage(ctx, "owner", model.ImageUpload{
		Filename: "foto.bin",
		Size:     int64(len(pngHeader)),
		Body:     bytes.NewReader(pngHeader),
	})
	if err != nil {
		t.Fatalf("AddGymImage error: %v", err)
	}
	if blobs.contentType != "image/png" || blobs.filename != "image.png" || blobs.folder != "gyms/"+g.ID {
		t.Fatalf("unexpected upload: %+v", blobs)
	}
	if len(upd.Images) != 1 || upd.MainImage == nil || *upd.MainImage != upd.Images[0] {
		t.Fatalf("image not attached: %+v", upd)
	}

	_, err = svc.AddGymImage(ctx, "owner", model.ImageUpload{Body: strings.NewReader("plain text")})
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}

	_, err = svc.AddGymImage(ctx, "owner", model.ImageUpload{Size: MaxImageSize + 1, Body: bytes.NewReader(pngHeader)})
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}

	repo.gyms[g.ID].Images = []string{"1", "2", "3", "4", "5", "6"}
	_, err = svc.AddGymImage(ctx, "owner", model.ImageUpload{Body: bytes.NewReader(pngHeader)})
	if !errors.Is(err, ErrTooManyImages) {
		t.Fatalf("expected ErrTooManyImages, got %v", err)
	}
}

func pngUpload() model.ImageUpload {
	return model.ImageUpload{Filename: "foto.png", Size: int64(len(pngHeader)), Body: bytes.NewReader(pngHeader)}
}

func TestAddGymImage_OverlappingUploadsKeepBothImages(t *testing.T) {
	repo := newStubRepo()
	blobs := &stubBlobs{}
	svc := NewService(repo, blobs, nil, nil)
	ctx := context.Background()

	g, err := svc.RegisterGym(ctx, "owner", validGymInput())
	if err != nil {
		t.Fatal(err)
	}

	// вторая загрузка завершается, пока первая ещё передаёт файл
	blobs.onUpload = func() {
		if _, err := svc.AddGymImage(ctx, "owner", pngUpload()); err != nil {
			t.Fatalf("inner AddGymImage error: %v", err)
		}
	}

	final, err := svc.AddGymImage(ctx, "owner", pngUpload())
	if err != nil {
		t.Fatalf("AddGymImage error: %v", err)
	}

	stored := repo.gyms[g.ID]
	if len(stored.Images) != 2 || len(final.Images) != 2 {
		t.Fatalf("both images must be kept, stored %v returned %v", stored.Images, final.Images)
	}
	if stored.MainImage == nil || *stored.MainImage != stored.Images[0] {
		t.Fatalf("main image = %v, images = %v", stored.MainImage, stored.Images)
	}
	if len(blobs.deleted) != 0 {
		t.Fatalf("no blob should be deleted, got %v", blobs.deleted)
	}
}

func TestAddGymImage_LimitReachedDuringUpload(t *testing.T) {
	repo := newStubRepo()
	blobs := &stubBlobs{}
	svc := NewService(repo, blobs, nil, nil)
	ctx := context.Background()

	g, err := svc.RegisterGym(ctx, "owner", validGymInput())
	if err != nil {
		t.Fatal(err)
	}
	repo.gyms[g.ID].Images = []string{"1", "2", "3", "4", "5"}

	blobs.onUpload = func() {
		repo.gyms[g.ID].Images = append(repo.gyms[g.ID].Images, "6")
	}

	_, err = svc.AddGymImage(ctx, "owner", pngUpload())
	if !errors.Is(err, ErrTooManyImages) {
		t.Fatalf("expected ErrTooManyImages, got %v", err)
	}
	if len(blobs.deleted) != 1 || !strings.HasPrefix(blobs.deleted[0], "https://cdn/gyms/"+g.ID+"/") {
		t.Fatalf("uploaded blob must be deleted, got %v", blobs.deleted)
	}
	if len(repo.gyms[g.ID].Images) != model.MaxGymImages {
		t.Fatalf("images = %v", repo.gyms[g.ID].Images)
	}
}

func TestAddGymImage_DeletesBlobOnStoreError(t *testing.T) {
	repo := newStubRepo()
	blobs := &stubBlobs{}
	svc := NewService(repo, blobs, nil, nil)
	ctx := context.Background()

	if _, err := svc.RegisterGym(ctx, "owner", validGymInput()); err != nil {
		t.Fatal(err)
	}
	repo.appendErr = errors.New("connection reset")

	if _, err := svc.AddGymImage(ctx, "owner", pngUpload()); err == nil {
		t.Fatal("expected error")
	}
	if len(blobs.deleted) != 1 {
		t.Fatalf("uploaded blob must be deleted, got %v", blobs.deleted)
	}
}

func TestUpdateGym_RejectsStaleWrite(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, &stubBlobs{}, nil, nil)
	ctx := context.Background()

	g, err := svc.RegisterGym(ctx, "owner", validGymInput())
	if err != nil {
		t.Fatal(err)
	}

	// изображение добавляется между чтением и записью академии
	repo.afterOwnerLookup = func() {
		if _, err := repo.AppendGymImage(ctx, "owner", "https://cdn/fresh.png"); err != nil {
			t.Fatalf("AppendGymImage error: %v", err)
		}
	}

	in := validGymInput()
	in.Images = []string{}
	if _, err := svc.UpdateGym(ctx, "owner", in); !errors.Is(err, repository.ErrGymModified) {
		t.Fatalf("expected ErrGymModified, got %v", err)
	}
	if imgs := repo.gyms[g.ID].Images; len(imgs) != 1 || imgs[0] != "https://cdn/fresh.png" {
		t.Fatalf("fresh image lost: %v", imgs)
	}
}

func TestAddGymImage_NoStorage(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil, nil)
	_, err := svc.AddGymImage(context.Background(), "owner", model.ImageUpload{Body: bytes.NewReader(pngHeader)})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestSubmitRatingAndAggregate(t *testing.T) {
	repo := newStubRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, pub, nil)
	ctx := context.Background()

	g, err := svc.RegisterGym(ctx, "owner", validGymInput())
	if err != nil {
		t.Fatal(err)
	}

	author := model.Attribution{DisplayName: "Visitante"}
	r, err := svc.SubmitRating(ctx, g.ID, author, model.CategoryRating{Space: 5, Equipment: 4, ValueForMoney: 3, Services: 4, Water: 2})
	if err != nil {
		t.Fatalf("SubmitRating error: %v", err)
	}
	if r.Overall != 3.6 {
		t.Fatalf("overall = %v, want 3.6", r.Overall)
	}

	if _, err := svc.SubmitRating(ctx, g.ID, author, model.CategoryRating{Space: 1, Equipment: 2, ValueForMoney: 3, Services: 4, Water: 5}); err != nil {
		t.Fatal(err)
	}

	agg, err := svc.GetGymRating(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Count != 2 || agg.Space != 3 || agg.Water != 3.5 || agg.Overall != 3.3 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}

	list, err := svc.SearchGyms(ctx, model.GymFilter{State: "SP"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Reviews != 2 || list[0].Rating.Overall != 3.3 {
		t.Fatalf("unexpected summaries: %+v", list)
	}

	if got := pub.events[len(pub.events)-1]; got.Kind != events.KindRatingCreated || got.GymID != g.ID {
		t.Fatalf("unexpected last event: %+v", got)
	}
}

func TestSubmitRating_Errors(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.SubmitRating(ctx, "missing", model.Attribution{DisplayName: "x"}, model.CategoryRating{Space: 3})
	if !errors.Is(err, repository.ErrGymNotFound) {
		t.Fatalf("expected ErrGymNotFound, got %v", err)
	}

	_, err = svc.SubmitRating(ctx, "missing", model.Attribution{DisplayName: "x"}, model.CategoryRating{Space: 6, Water: -1})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Fields["space"] == "" || verr.Fields["water"] == "" || verr.Fields["equipment"] != "" {
		t.Fatalf("unexpected fields: %+v", verr.Fields)
	}
}

func TestComments(t *testing.T) {
	repo := newStubRepo()
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, pub, nil)
	ctx := context.Background()

	g, err := svc.RegisterGym(ctx, "owner", validGymInput())
	if err != nil {
		t.Fatal(err)
	}
	author := model.Attribution{DisplayName: "Visitante"}

	var verr *ValidationError
	if _, err := svc.AddComment(ctx, g.ID, author, "   "); !errors.As(err, &verr) {
		t.Fatalf("empty comment must fail, got %v", err)
	}
	if _, err := svc.AddComment(ctx, g.ID, author, strings.Repeat("é", MaxCommentLength+1)); !errors.As(err, &verr) {
		t.Fatalf("long comment must fail, got %v", err)
	}

	c, err := svc.AddComment(ctx, g.ID, author, "  Ótimo lugar ")
	if err != nil {
		t.Fatalf("AddComment error: %v", err)
	}
	if c.Text != "Ótimo lugar" {
		t.Fatalf("text = %q", c.Text)
	}

	list, err := svc.ListComments(ctx, g.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListComments = %+v, %v", list, err)
	}

	detail, err := svc.GetGymDetail(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Comments) != 1 || detail.Rating.Count != 0 {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	if _, err := svc.ListComments(ctx, "missing"); !errors.Is(err, repository.ErrGymNotFound) {
		t.Fatalf("expected ErrGymNotFound, got %v", err)
	}

	if got := pub.events[len(pub.events)-1]; got.Kind != events.KindCommentCreated || got.EntityID != c.ID {
		t.Fatalf("unexpected last event: %+v", got)
	}
}

func TestCheckCNPJ(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil, nil)

	res := svc.CheckCNPJ("11222333000181")
	if !res.Valid || res.Digits != "11222333000181" || res.Formatted != "11.222.333/0001-81" {
		t.Fatalf("unexpected check: %+v", res)
	}

	if svc.CheckCNPJ("11.222.333/0001-80").Valid {
		t.Fatalf("wrong check digit must be invalid")
	}
}
