package plugin

import "context"

// DataService reads and writes records on behalf of a user. Calls block until
// the host answers.
type DataService interface {
	// Create inserts rec and returns its id. A blank rec.ID asks the service
	// to assign one.
	Create(ctx context.Context, rec *Record) (string, error)

	// Retrieve loads a record. With no columns every attribute is returned.
	Retrieve(ctx context.Context, ref Reference, columns ...string) (*Record, error)

	// Update writes only the attributes present on rec.
	Update(ctx context.Context, rec *Record) error

	// Delete removes a record.
	Delete(ctx context.Context, ref Reference) error
}

// Session is a DataService bound to a held host resource (a connection, a
// remote session). Close releases it.
type Session interface {
	DataService
	Close() error
}

// ServiceFactory opens sessions acting as the given user.
type ServiceFactory interface {
	OpenSession(ctx context.Context, userID string) (Session, error)
}

// ServiceFactoryFunc is a function adapter for ServiceFactory.
type ServiceFactoryFunc func(ctx context.Context, userID string) (Session, error)

// OpenSession implements the ServiceFactory interface.
func (f ServiceFactoryFunc) OpenSession(ctx context.Context, userID string) (Session, error) {
	return f(ctx, userID)
}

// Services is everything the host resolves before entering Execute.
type Services struct {
	Event   *Event
	Sink    TraceSink
	Factory ServiceFactory
}

type unavailableService struct{}

func (unavailableService) Create(context.Context, *Record) (string, error) {
	return "", ErrNoDataService
}

func (unavailableService) Retrieve(context.Context, Reference, ...string) (*Record, error) {
	return nil, ErrNoDataService
}

func (unavailableService) Update(context.Context, *Record) error { return ErrNoDataService }

func (unavailableService) Delete(context.Context, Reference) error { return ErrNoDataService }

func (unavailableService) Close() error { return nil }
