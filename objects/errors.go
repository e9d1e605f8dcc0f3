package objects

import "fmt"

type UnknownObjectError struct {
	ObjectID uint64
}

func (e UnknownObjectError) Error() string {
	return fmt.Sprintf("unknown object %d", e.ObjectID)
}

func (e UnknownObjectError) Is(target error) bool {
	_, ok := target.(UnknownObjectError)
	return ok
}

type ObjectCommittedError struct {
	ObjectID uint64
}

func (e ObjectCommittedError) Error() string {
	return fmt.Sprintf("object %d already committed", e.ObjectID)
}

func (e ObjectCommittedError) Is(target error) bool {
	_, ok := target.(ObjectCommittedError)
	return ok
}
