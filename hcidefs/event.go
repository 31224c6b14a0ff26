package hcidefs

// EventCode identifies an HCI event (the first byte of an event frame
// on the control channel).
type EventCode uint8

const (
	EventInquiryComplete       EventCode = 0x01
	EventConnectionComplete    EventCode = 0x03
	EventConnectionRequest     EventCode = 0x04
	EventDisconnectionComplete EventCode = 0x05
	EventAuthenticationComplete EventCode = 0x06
	EventEncryptionChange      EventCode = 0x08
	EventCommandComplete       EventCode = 0x0E
	EventCommandStatus         EventCode = 0x0F
	EventRoleChange            EventCode = 0x12
	EventNumberOfCompletedPkts EventCode = 0x13
	EventPINCodeRequest        EventCode = 0x16
	EventLinkKeyRequest        EventCode = 0x17
	EventLinkKeyNotification   EventCode = 0x18
	EventEncryptionKeyRefreshComplete EventCode = 0x30
	EventIOCapabilityRequest   EventCode = 0x31
	EventSimplePairingComplete EventCode = 0x36
	EventLEMeta                EventCode = 0x3E
)

var eventCodeName = map[EventCode]string{
	EventInquiryComplete:              "Inquiry Complete",
	EventConnectionComplete:           "Connection Complete",
	EventConnectionRequest:            "Connection Request",
	EventDisconnectionComplete:        "Disconnection Complete",
	EventAuthenticationComplete:       "Authentication Complete",
	EventEncryptionChange:             "Encryption Change",
	EventCommandComplete:              "Command Complete",
	EventCommandStatus:                "Command Status",
	EventRoleChange:                   "Role Change",
	EventNumberOfCompletedPkts:        "Number Of Completed Packets",
	EventPINCodeRequest:               "PIN Code Request",
	EventLinkKeyRequest:               "Link Key Request",
	EventLinkKeyNotification:          "Link Key Notification",
	EventEncryptionKeyRefreshComplete: "Encryption Key Refresh Complete",
	EventIOCapabilityRequest:          "IO Capability Request",
	EventSimplePairingComplete:        "Simple Pairing Complete",
	EventLEMeta:                       "LE Meta",
}

func (e EventCode) String() string {
	if name, ok := eventCodeName[e]; ok {
		return name
	}
	return "Unknown Event"
}

// KnownEvent reports whether e is one of the well-known event codes
// this core recognizes (for to_status() decoding, spec.md §4.1).
// Unknown event codes are protocol errors, never host-aborting.
func KnownEvent(e EventCode) bool {
	_, ok := eventCodeName[e]
	return ok
}

// LEEventCode identifies a subevent carried in an LE Meta event.
type LEEventCode uint8

const (
	LEConnectionComplete               LEEventCode = 0x01
	LEAdvertisingReport                LEEventCode = 0x02
	LEConnectionUpdateComplete         LEEventCode = 0x03
	LEReadRemoteUsedFeaturesComplete   LEEventCode = 0x04
	LELTKRequest                       LEEventCode = 0x05
	LERemoteConnectionParameterRequest LEEventCode = 0x06
	LEAdvertisingSetTerminated         LEEventCode = 0x12
	LEExtendedAdvertisingReport        LEEventCode = 0x0D
	LEEnhancedConnectionComplete       LEEventCode = 0x0A
)

var leEventName = map[LEEventCode]string{
	LEConnectionComplete:               "LE Connection Complete",
	LEAdvertisingReport:                "LE Advertising Report",
	LEConnectionUpdateComplete:         "LE Connection Update Complete",
	LEReadRemoteUsedFeaturesComplete:   "LE Read Remote Used Features Complete",
	LELTKRequest:                       "LE Long Term Key Request",
	LERemoteConnectionParameterRequest: "LE Remote Connection Parameter Request",
	LEAdvertisingSetTerminated:         "LE Advertising Set Terminated",
	LEExtendedAdvertisingReport:        "LE Extended Advertising Report",
	LEEnhancedConnectionComplete:       "LE Enhanced Connection Complete",
}

func (e LEEventCode) String() string {
	if name, ok := leEventName[e]; ok {
		return name
	}
	return "Unknown LE Subevent"
}
