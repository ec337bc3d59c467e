package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/spf13/viper"

	"github.com/accessone/backend/internal/models"
)

const settlementQueueKey = "settlement_queue"

// SettlementService hands external transfer legs to the interbank rail. A leg
// whose destination has no internal account is recorded as PENDING_SETTLEMENT,
// converted to an ISO 20022 pacs.008 message, and pushed onto a Redis queue
// for the settlement worker to drain.
type SettlementService struct {
	redis    *redis.Client
	bic      string
	currency string
}

func NewSettlementService(redisClient *redis.Client) *SettlementService {
	viper.SetDefault("bank.bic", "ACCESSONE")
	viper.SetDefault("bank.currency", "INR")

	return &SettlementService{
		redis:    redisClient,
		bic:      viper.GetString("bank.bic"),
		currency: viper.GetString("bank.currency"),
	}
}

type settlementEnvelope struct {
	Reference string `json:"reference"`
	BankCode  string `json:"bankCode"`
	Message   string `json:"message"`
	QueuedAt  int64  `json:"queuedAt"`
}

// Queue converts the external leg to pacs.008 and enqueues it.
func (s *SettlementService) Queue(ctx context.Context, record *models.Transaction, bankCode string) error {
	doc, err := s.buildPacs008(record, bankCode)
	if err != nil {
		return err
	}

	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pacs.008: %w", err)
	}

	if s.redis == nil {
		log.Printf("[SETTLEMENT] Redis unavailable, settlement message for %s not queued", record.Reference)
		return fmt.Errorf("%w: settlement queue unavailable", ErrDependency)
	}

	payload, err := json.Marshal(settlementEnvelope{
		Reference: record.Reference,
		BankCode:  bankCode,
		Message:   xml.Header + string(xmlData),
		QueuedAt:  time.Now().UTC().Unix(),
	})
	if err != nil {
		return err
	}

	if err := s.redis.RPush(ctx, settlementQueueKey, string(payload)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDependency, err)
	}

	log.Printf("[SETTLEMENT] Queued %s for settlement via bank %s", record.Reference, bankCode)
	return nil
}

func (s *SettlementService) buildPacs008(record *models.Transaction, bankCode string) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgID := uuid.New().String()
	now := time.Now().UTC()
	amount := float64(record.Amount) / 100

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(s.currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(record.Reference)}[0],
					EndToEndId: common.Max35Text(record.Reference),
					TxId:       &[]common.Max35Text{common.Max35Text(record.Reference)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(s.currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(s.bic)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(string(record.AccountNumber))}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(bankCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(record.Counterparty)}[0],
				},
			},
		},
	}

	return doc, nil
}
