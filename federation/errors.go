package federation

import "errors"

var (
	ErrNotFederator             = errors.New("federation: not federator")
	ErrNotOwner                 = errors.New("federation: caller is not the owner")
	ErrAlreadyProposed          = errors.New("federation: already proposed")
	ErrAlreadySigned            = errors.New("federation: transaction already signed")
	ErrAlreadySent              = errors.New("federation: transaction already sent")
	ErrNotProposed              = errors.New("federation: transaction not proposed")
	ErrLastMemberRemoval        = errors.New("federation: cannot remove the last member")
	ErrUnknownMember            = errors.New("federation: identity is not a member")
	ErrAlreadyMember            = errors.New("federation: identity is already a member")
	ErrEmptyMembers             = errors.New("federation: members list is empty")
	ErrInvalidIdentity          = errors.New("federation: identity is empty")
	ErrInvalidValue             = errors.New("federation: value must be an unsigned 256 bit integer")
	ErrSignatureIndexOutOfRange = errors.New("federation: signature index out of range")
	ErrUnknownEvent             = errors.New("federation: unknown event kind")
	ErrMalformedEvent           = errors.New("federation: malformed event")
	ErrJournalWrite             = errors.New("federation: journal write failed")
	ErrCorruptedJournal         = errors.New("federation: journal is corrupted")
)
