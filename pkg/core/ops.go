package core

// Op is a 32-bit operation code prefixing an internal message body.
type Op uint32

const (
	OpComment            Op = 0
	OpFillUp             Op = 0x370fec51
	OpOutbidNotification Op = 0x557cea20
	OpTelemintDeploy     Op = 0x4637289a
	OpTelemintDeployV2   Op = 0x4637289b
	OpTeleitemDeploy     Op = 0x299a3e15
	OpStartAuction       Op = 0x487a8e81
	OpCancelAuction      Op = 0x371638ae
	OpTeleitemBidInfo    Op = 0x38127de1
	OpTeleitemReturnBid  Op = 0xa43227e1
	OpTeleitemOk         Op = 0xa37a0983
	OpTransfer           Op = 0x5fcc3d14
	OpOwnershipAssigned  Op = 0x05138d91
	OpExcesses           Op = 0xd53276db
	OpGetStaticData      Op = 0x2fcb26a2
	OpReportStaticData   Op = 0x8b771735
	OpGetRoyaltyParams   Op = 0x693d3950
	OpReportRoyalty      Op = 0xa8cb00ad
	OpBounce             Op = 0xffffffff
)

func (op Op) String() string {
	switch op {
	case OpComment:
		return "comment"
	case OpFillUp:
		return "fill_up"
	case OpOutbidNotification:
		return "outbid_notification"
	case OpTelemintDeploy:
		return "telemint_msg_deploy"
	case OpTelemintDeployV2:
		return "telemint_msg_deploy_v2"
	case OpTeleitemDeploy:
		return "teleitem_msg_deploy"
	case OpStartAuction:
		return "teleitem_start_auction"
	case OpCancelAuction:
		return "teleitem_cancel_auction"
	case OpTeleitemBidInfo:
		return "teleitem_bid_info"
	case OpTeleitemReturnBid:
		return "teleitem_return_bid"
	case OpTeleitemOk:
		return "teleitem_ok"
	case OpTransfer:
		return "transfer"
	case OpOwnershipAssigned:
		return "ownership_assigned"
	case OpExcesses:
		return "excesses"
	case OpGetStaticData:
		return "get_static_data"
	case OpReportStaticData:
		return "report_static_data"
	case OpGetRoyaltyParams:
		return "get_royalty_params"
	case OpReportRoyalty:
		return "report_royalty_params"
	case OpBounce:
		return "bounce"
	}
	return "unknown"
}
