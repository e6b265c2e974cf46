package appointments

import "sync"

// Store is the patient's cached appointment list. It is the only place the
// list is mutated; callers get copies, never references into the slice.
type Store struct {
	mu          sync.RWMutex
	items       []Appointment
	index       map[string]int
	selectedID  string
	subscribers map[int]chan []Appointment
	nextSub     int
}

// NewStore creates a store seeded with appts in display order.
func NewStore(appts ...Appointment) *Store {
	s := &Store{subscribers: make(map[int]chan []Appointment)}
	s.load(appts)
	return s
}

// Load replaces the whole list, e.g. after a fresh fetch. Any selection that
// no longer exists is dropped.
func (s *Store) Load(appts []Appointment) {
	s.mu.Lock()
	s.load(appts)
	if _, ok := s.index[s.selectedID]; !ok {
		s.selectedID = ""
	}
	s.publishLocked()
	s.mu.Unlock()
}

func (s *Store) load(appts []Appointment) {
	s.items = make([]Appointment, 0, len(appts))
	s.index = make(map[string]int, len(appts))
	for _, a := range appts {
		if _, dup := s.index[a.ID]; dup {
			continue
		}
		s.index[a.ID] = len(s.items)
		s.items = append(s.items, a)
	}
}

// List returns a copy of every appointment in display order.
func (s *Store) List() []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of cached appointments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// IDs returns the ids of every cached appointment in display order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.items))
	for i, a := range s.items {
		out[i] = a.ID
	}
	return out
}

// Get returns the appointment with the given id.
func (s *Store) Get(id string) (Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Appointment{}, false
	}
	return s.items[i], true
}

// Replace overwrites the date and reason of exactly one appointment.
// Every other entry and every other field is left as it was.
func (s *Store) Replace(id string, f Fields) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.items[i].Date = f.Date
	s.items[i].Reason = f.Reason
	s.publishLocked()
	s.mu.Unlock()
	return nil
}

// Add appends a newly created appointment.
func (s *Store) Add(a Appointment) error {
	s.mu.Lock()
	if _, dup := s.index[a.ID]; dup {
		s.mu.Unlock()
		return ErrDuplicateID
	}
	s.index[a.ID] = len(s.items)
	s.items = append(s.items, a)
	s.publishLocked()
	s.mu.Unlock()
	return nil
}

// Select marks an appointment as the one being edited. Appointments dated
// before today cannot be selected. Subscribers are notified when the
// selection changes.
func (s *Store) Select(id string, today Date) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	if !s.items[i].Editable(today) {
		return Appointment{}, ErrNotEditable
	}
	if s.selectedID != id {
		s.selectedID = id
		s.publishLocked()
	}
	return s.items[i], nil
}

// Selected returns the appointment currently being edited, if any.
func (s *Store) Selected() (Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedID == "" {
		return Appointment{}, false
	}
	i, ok := s.index[s.selectedID]
	if !ok {
		return Appointment{}, false
	}
	return s.items[i], true
}

// ClearSelection drops the current edit selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	if s.selectedID != "" {
		s.selectedID = ""
		s.publishLocked()
	}
	s.mu.Unlock()
}

// Subscribe returns a channel that receives a snapshot after every change.
// A subscriber that falls behind only sees the latest snapshot. Call the
// returned func to unsubscribe; it closes the channel.
func (s *Store) Subscribe() (<-chan []Appointment, func()) {
	ch := make(chan []Appointment, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) snapshotLocked() []Appointment {
	out := make([]Appointment, len(s.items))
	copy(out, s.items)
	return out
}

// publishLocked must be called with the write lock held so subscribers see
// snapshots in mutation order.
func (s *Store) publishLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	snapshot := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snapshot:
			continue
		default:
		}
		// drop the stale snapshot and retry once
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}
