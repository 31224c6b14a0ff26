// Package hcidefs holds the wire-level vocabulary of the Host
// Controller Interface: opcodes, event codes, and LE subevent codes.
// These are opaque identifiers to upper layers; this package only
// names them and partitions OpCode into OGF/OCF per spec.md §3.
package hcidefs

// OGF groups, upper 6 bits of an OpCode.
const (
	OGFLinkControl     = 0x01
	OGFLinkPolicy      = 0x02
	OGFHostControl     = 0x03
	OGFInfoParam       = 0x04
	OGFStatusParam     = 0x05
	OGFTesting         = 0x3E
	OGFLEControl       = 0x08
	OGFVendor          = 0x3F
)

// OpCode is a 16-bit command identifier: OGF (upper 6 bits) plus OCF
// (lower 10 bits). 0x0000 is reserved ("NOP") and never appears as an
// outbound opcode; it is the value the controller uses in the
// Num_HCI_Command_Packets credit-only Command Complete/Status.
type OpCode uint16

// NOP is the reserved, never-sent opcode used by the controller to
// grant command credit without completing a specific command.
const NOP OpCode = 0x0000

// OGF returns the opcode group field.
func (op OpCode) OGF() uint8 { return uint8((uint16(op) & 0xFC00) >> 10) }

// OCF returns the opcode command field.
func (op OpCode) OCF() uint16 { return uint16(op) & 0x03FF }

func mkOpCode(ogf uint16, ocf uint16) OpCode { return OpCode(ogf<<10 | ocf) }

func (op OpCode) String() string {
	if name, ok := opCodeName[op]; ok {
		return name
	}
	return "Unknown OpCode"
}

// Link Control
const (
	OpDisconnect         = OpCode(OGFLinkControl<<10 | 0x0006)
	OpCreateConn         = OpCode(OGFLinkControl<<10 | 0x0005)
	OpAcceptConnReq      = OpCode(OGFLinkControl<<10 | 0x0009)
	OpAuthRequested      = OpCode(OGFLinkControl<<10 | 0x0011)
	OpSetConnEncrypt     = OpCode(OGFLinkControl<<10 | 0x0013)
	OpLinkKeyReply       = OpCode(OGFLinkControl<<10 | 0x000B)
	OpLinkKeyNegReply    = OpCode(OGFLinkControl<<10 | 0x000C)
	OpRemoteNameReq      = OpCode(OGFLinkControl<<10 | 0x0019)
	OpReadRemoteFeatures = OpCode(OGFLinkControl<<10 | 0x001B)
	OpReadRemoteVersion  = OpCode(OGFLinkControl<<10 | 0x001D)
	OpSetupSyncConn      = OpCode(OGFLinkControl<<10 | 0x0028)
	OpAcceptSyncConnReq  = OpCode(OGFLinkControl<<10 | 0x0029)
)

// Host Controller & Baseband
const (
	OpSetEventMask        = OpCode(OGFHostControl<<10 | 0x0001)
	OpReset               = OpCode(OGFHostControl<<10 | 0x0003)
	OpWriteSimplePairing  = OpCode(OGFHostControl<<10 | 0x0056)
	OpWriteLEHostSupport  = OpCode(OGFHostControl<<10 | 0x006D)
	OpWriteInquiryMode    = OpCode(OGFHostControl<<10 | 0x0045)
	OpWritePageScanType   = OpCode(OGFHostControl<<10 | 0x0047)
	OpWriteInquiryScanType = OpCode(OGFHostControl<<10 | 0x0043)
	OpWriteClassOfDevice  = OpCode(OGFHostControl<<10 | 0x0024)
	OpWritePageTimeout    = OpCode(OGFHostControl<<10 | 0x0018)
	OpWriteDefaultLinkPolicy = OpCode(OGFHostControl<<10 | 0x000F)
	OpHostBufferSize      = OpCode(OGFHostControl<<10 | 0x0033)
	OpHostNumCompPkts     = OpCode(OGFHostControl<<10 | 0x0035)
)

// LE Controller
const (
	OpLESetEventMask             = OpCode(OGFLEControl<<10 | 0x0001)
	OpLEReadBufferSize           = OpCode(OGFLEControl<<10 | 0x0002)
	OpLESetRandomAddress         = OpCode(OGFLEControl<<10 | 0x0005)
	OpLESetAdvertisingParameters = OpCode(OGFLEControl<<10 | 0x0006)
	OpLESetAdvertisingData       = OpCode(OGFLEControl<<10 | 0x0008)
	OpLESetScanResponseData      = OpCode(OGFLEControl<<10 | 0x0009)
	OpLESetAdvertiseEnable       = OpCode(OGFLEControl<<10 | 0x000A)
	OpLESetScanParameters        = OpCode(OGFLEControl<<10 | 0x000B)
	OpLESetScanEnable            = OpCode(OGFLEControl<<10 | 0x000C)
	OpLECreateConn               = OpCode(OGFLEControl<<10 | 0x000D)
	OpLECreateConnCancel         = OpCode(OGFLEControl<<10 | 0x000E)
	OpLEConnUpdate               = OpCode(OGFLEControl<<10 | 0x0013)
	OpLEStartEncryption          = OpCode(OGFLEControl<<10 | 0x0019)
	OpLELTKReply                 = OpCode(OGFLEControl<<10 | 0x001A)
	OpLELTKNegReply              = OpCode(OGFLEControl<<10 | 0x001B)
	OpLERemoteConnParamReply     = OpCode(OGFLEControl<<10 | 0x0020)
	OpLERemoteConnParamNegReply  = OpCode(OGFLEControl<<10 | 0x0021)

	// Extended advertising (Core 5.0), used by the extended advertiser.
	OpLESetAdvertisingSetRandomAddr = OpCode(OGFLEControl<<10 | 0x0035)
	OpLESetExtAdvertisingParameters = OpCode(OGFLEControl<<10 | 0x0036)
	OpLESetExtAdvertisingData       = OpCode(OGFLEControl<<10 | 0x0037)
	OpLESetExtScanResponseData      = OpCode(OGFLEControl<<10 | 0x0038)
	OpLESetExtAdvertisingEnable     = OpCode(OGFLEControl<<10 | 0x0039)
	OpLERemoveAdvertisingSet        = OpCode(OGFLEControl<<10 | 0x003C)
	OpLEClearAdvertisingSets        = OpCode(OGFLEControl<<10 | 0x003D)
	OpLESetExtScanParameters        = OpCode(OGFLEControl<<10 | 0x0041)
	OpLESetExtScanEnable            = OpCode(OGFLEControl<<10 | 0x0042)
	OpLEExtCreateConn               = OpCode(OGFLEControl<<10 | 0x0043)
)

var opCodeName = map[OpCode]string{
	OpDisconnect:         "Disconnect",
	OpCreateConn:         "Create Connection",
	OpAcceptConnReq:      "Accept Connection Request",
	OpAuthRequested:      "Authentication Requested",
	OpSetConnEncrypt:     "Set Connection Encryption",
	OpLinkKeyReply:       "Link Key Request Reply",
	OpLinkKeyNegReply:    "Link Key Request Negative Reply",
	OpRemoteNameReq:      "Remote Name Request",
	OpReadRemoteFeatures: "Read Remote Supported Features",
	OpReadRemoteVersion:  "Read Remote Version Information",
	OpSetupSyncConn:      "Setup Synchronous Connection",
	OpAcceptSyncConnReq:  "Accept Synchronous Connection Request",

	OpSetEventMask:           "Set Event Mask",
	OpReset:                  "Reset",
	OpWriteSimplePairing:     "Write Simple Pairing Mode",
	OpWriteLEHostSupport:     "Write LE Host Support",
	OpWriteInquiryMode:       "Write Inquiry Mode",
	OpWritePageScanType:      "Write Page Scan Type",
	OpWriteInquiryScanType:   "Write Inquiry Scan Type",
	OpWriteClassOfDevice:     "Write Class of Device",
	OpWritePageTimeout:       "Write Page Timeout",
	OpWriteDefaultLinkPolicy: "Write Default Link Policy Settings",
	OpHostBufferSize:         "Host Buffer Size",
	OpHostNumCompPkts:        "Host Number Of Completed Packets",

	OpLESetEventMask:             "LE Set Event Mask",
	OpLEReadBufferSize:           "LE Read Buffer Size",
	OpLESetRandomAddress:         "LE Set Random Address",
	OpLESetAdvertisingParameters: "LE Set Advertising Parameters",
	OpLESetAdvertisingData:       "LE Set Advertising Data",
	OpLESetScanResponseData:      "LE Set Scan Response Data",
	OpLESetAdvertiseEnable:       "LE Set Advertise Enable",
	OpLESetScanParameters:        "LE Set Scan Parameters",
	OpLESetScanEnable:            "LE Set Scan Enable",
	OpLECreateConn:               "LE Create Connection",
	OpLECreateConnCancel:         "LE Create Connection Cancel",
	OpLEConnUpdate:               "LE Connection Update",
	OpLEStartEncryption:          "LE Start Encryption",
	OpLELTKReply:                 "LE Long Term Key Request Reply",
	OpLELTKNegReply:              "LE Long Term Key Request Negative Reply",
	OpLERemoteConnParamReply:     "LE Remote Connection Parameter Request Reply",
	OpLERemoteConnParamNegReply:  "LE Remote Connection Parameter Request Negative Reply",

	OpLESetAdvertisingSetRandomAddr: "LE Set Advertising Set Random Address",
	OpLESetExtAdvertisingParameters: "LE Set Extended Advertising Parameters",
	OpLESetExtAdvertisingData:       "LE Set Extended Advertising Data",
	OpLESetExtScanResponseData:      "LE Set Extended Scan Response Data",
	OpLESetExtAdvertisingEnable:     "LE Set Extended Advertising Enable",
	OpLERemoveAdvertisingSet:        "LE Remove Advertising Set",
	OpLEClearAdvertisingSets:        "LE Clear Advertising Sets",
	OpLESetExtScanParameters:        "LE Set Extended Scan Parameters",
	OpLESetExtScanEnable:            "LE Set Extended Scan Enable",
	OpLEExtCreateConn:               "LE Extended Create Connection",
}
